package models

import (
	"time"

	"github.com/google/uuid"
)

type Subject struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	InstructorID uuid.UUID  `json:"instructor_id"`
	InviteCode   string     `json:"invite_code"`
	IsVisible    bool       `json:"is_visible"`
	DeletedAt    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const (
	MemberRoleInstructor = "instructor"
	MemberRoleAssistant  = "assistant"
	MemberRoleStudent    = "student"
)

func ValidMemberRole(role string) bool {
	switch role {
	case MemberRoleInstructor, MemberRoleAssistant, MemberRoleStudent:
		return true
	}
	return false
}

type SubjectMember struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}
