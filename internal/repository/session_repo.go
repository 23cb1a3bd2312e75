package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, subject_id, instructor_id, title, description, session_type, invite_code,
	week_number, visibility, video_url, material_path, material_name,
	assignment_description, assignment_due_at, quiz_time_limit, quiz_pass_score,
	attendance_start, attendance_end, late_allowed, late_end, created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID, &s.SubjectID, &s.InstructorID, &s.Title, &s.Description, &s.SessionType,
		&s.InviteCode, &s.WeekNumber, &s.Visibility, &s.VideoURL, &s.MaterialPath,
		&s.MaterialName, &s.AssignmentDescription, &s.AssignmentDueAt,
		&s.QuizTimeLimit, &s.QuizPassScore, &s.AttendanceStart, &s.AttendanceEnd,
		&s.LateAllowed, &s.LateEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, subject_id, instructor_id, title, description, session_type, invite_code,
			week_number, visibility, video_url, assignment_description, assignment_due_at,
			quiz_time_limit, quiz_pass_score, attendance_start, attendance_end, late_allowed, late_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`

	s.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		s.ID, s.SubjectID, s.InstructorID, s.Title, s.Description, s.SessionType, s.InviteCode,
		s.WeekNumber, s.Visibility, s.VideoURL, s.AssignmentDescription, s.AssignmentDueAt,
		s.QuizTimeLimit, s.QuizPassScore, s.AttendanceStart, s.AttendanceEnd, s.LateAllowed, s.LateEnd,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = $1 AND deleted_at IS NULL", id))
}

func (r *SessionRepo) GetByInviteCode(ctx context.Context, code string) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE invite_code = $1 AND deleted_at IS NULL", code))
}

func (r *SessionRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE subject_id = $1 AND deleted_at IS NULL
		 ORDER BY week_number NULLS LAST, created_at`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListEnrolled returns sessions the user has joined, newest first.
func (r *SessionRepo) ListEnrolled(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions s
		WHERE s.deleted_at IS NULL
		  AND (s.instructor_id = $1
		       OR EXISTS (SELECT 1 FROM enrollments e WHERE e.session_id = s.id AND e.user_id = $1))
		ORDER BY s.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) Update(ctx context.Context, s *models.Session) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET title = $1, description = $2, week_number = $3, visibility = $4,
			video_url = $5, assignment_description = $6, assignment_due_at = $7,
			quiz_time_limit = $8, quiz_pass_score = $9,
			attendance_start = $10, attendance_end = $11, late_allowed = $12, late_end = $13,
			updated_at = NOW()
		WHERE id = $14 AND deleted_at IS NULL
	`, s.Title, s.Description, s.WeekNumber, s.Visibility, s.VideoURL,
		s.AssignmentDescription, s.AssignmentDueAt, s.QuizTimeLimit, s.QuizPassScore,
		s.AttendanceStart, s.AttendanceEnd, s.LateAllowed, s.LateEnd, s.ID)
	return err
}

func (r *SessionRepo) SetMaterial(ctx context.Context, id uuid.UUID, path, name string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sessions SET material_path = $1, material_name = $2, updated_at = NOW() WHERE id = $3",
		path, name, id)
	return err
}

func (r *SessionRepo) SetInviteCode(ctx context.Context, id uuid.UUID, code string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sessions SET invite_code = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL",
		code, id)
	return err
}

func (r *SessionRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sessions SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	return err
}

func (r *SessionRepo) Enroll(ctx context.Context, sessionID, userID uuid.UUID) (*models.Enrollment, error) {
	e := &models.Enrollment{ID: uuid.New(), SessionID: sessionID, UserID: userID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO enrollments (id, session_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, enrolled_at
	`, e.ID, sessionID, userID).Scan(&e.ID, &e.EnrolledAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *SessionRepo) IsEnrolled(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	var enrolled bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM enrollments WHERE session_id = $1 AND user_id = $2)",
		sessionID, userID).Scan(&enrolled)
	return enrolled, err
}

// ListAssignmentsDueBetween finds sessions whose assignment deadline falls
// inside the window. The reminder scheduler polls this hourly.
func (r *SessionRepo) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE deleted_at IS NULL AND assignment_due_at > $1 AND assignment_due_at <= $2`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) ListEnrolledUsers(ctx context.Context, sessionID uuid.UUID) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name, u.nickname, u.role
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.session_id = $1
		ORDER BY u.full_name
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Nickname, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
