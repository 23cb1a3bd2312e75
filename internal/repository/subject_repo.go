package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type SubjectRepo struct {
	pool *pgxpool.Pool
}

func NewSubjectRepo(pool *pgxpool.Pool) *SubjectRepo {
	return &SubjectRepo{pool: pool}
}

func (r *SubjectRepo) Create(ctx context.Context, s *models.Subject) error {
	query := `
		INSERT INTO subjects (id, title, description, instructor_id, invite_code, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	s.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		s.ID, s.Title, s.Description, s.InstructorID, s.InviteCode, s.IsVisible,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SubjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subject, error) {
	s := &models.Subject{}
	query := `SELECT id, title, description, instructor_id, invite_code, is_visible, created_at, updated_at
		FROM subjects WHERE id = $1 AND deleted_at IS NULL`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Description, &s.InstructorID, &s.InviteCode,
		&s.IsVisible, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubjectRepo) GetByInviteCode(ctx context.Context, code string) (*models.Subject, error) {
	s := &models.Subject{}
	query := `SELECT id, title, description, instructor_id, invite_code, is_visible, created_at, updated_at
		FROM subjects WHERE invite_code = $1 AND deleted_at IS NULL`

	err := r.pool.QueryRow(ctx, query, code).Scan(
		&s.ID, &s.Title, &s.Description, &s.InstructorID, &s.InviteCode,
		&s.IsVisible, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListForUser returns subjects the user teaches or is a member of.
func (r *SubjectRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Subject, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT s.id, s.title, s.description, s.instructor_id, s.invite_code, s.is_visible, s.created_at, s.updated_at
		FROM subjects s
		LEFT JOIN subject_members m ON m.subject_id = s.id
		WHERE s.deleted_at IS NULL
		  AND (s.instructor_id = $1 OR m.user_id = $1)
		ORDER BY s.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subjects := make([]*models.Subject, 0)
	for rows.Next() {
		s := &models.Subject{}
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.InstructorID, &s.InviteCode,
			&s.IsVisible, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func (r *SubjectRepo) Update(ctx context.Context, s *models.Subject) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE subjects SET title = $1, description = $2, is_visible = $3, updated_at = NOW()
		 WHERE id = $4 AND deleted_at IS NULL`,
		s.Title, s.Description, s.IsVisible, s.ID,
	)
	return err
}

func (r *SubjectRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE subjects SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	return err
}

func (r *SubjectRepo) AddMember(ctx context.Context, m *models.SubjectMember) error {
	m.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO subject_members (id, subject_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING id, created_at
	`, m.ID, m.SubjectID, m.UserID, m.Role).Scan(&m.ID, &m.CreatedAt)
}

func (r *SubjectRepo) RemoveMember(ctx context.Context, subjectID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM subject_members WHERE subject_id = $1 AND user_id = $2", subjectID, userID)
	return err
}

func (r *SubjectRepo) ListMembers(ctx context.Context, subjectID uuid.UUID) ([]*models.SubjectMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.subject_id, m.user_id, m.role, m.created_at, u.full_name, u.email
		FROM subject_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.subject_id = $1
		ORDER BY u.full_name
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*models.SubjectMember, 0)
	for rows.Next() {
		m := &models.SubjectMember{}
		if err := rows.Scan(&m.ID, &m.SubjectID, &m.UserID, &m.Role, &m.CreatedAt, &m.FullName, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
