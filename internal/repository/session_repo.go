package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"connectez-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// MostRecent returns the session with the newest last_heartbeat for the
// installation, or pgx.ErrNoRows when none exists.
func (r *SessionRepo) MostRecent(ctx context.Context, installID string) (*models.Session, error) {
	s := &models.Session{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, install_id, start_time, last_heartbeat, duration_seconds, created_at
		FROM activity_sessions
		WHERE install_id = $1
		ORDER BY last_heartbeat DESC
		LIMIT 1`, installID).Scan(
		&s.ID, &s.InstallID, &s.StartTime, &s.LastHeartbeat, &s.DurationSeconds, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) Start(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO activity_sessions (id, install_id, start_time, last_heartbeat, duration_seconds)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING created_at`

	s.ID = uuid.New()
	s.LastHeartbeat = s.StartTime
	s.DurationSeconds = 0

	return r.pool.QueryRow(ctx, query, s.ID, s.InstallID, s.StartTime, s.LastHeartbeat).Scan(&s.CreatedAt)
}

// Continue updates an open session in place. The duration is passed in
// recomputed from the session start, never incremented.
func (r *SessionRepo) Continue(ctx context.Context, sessionID uuid.UUID, lastHeartbeat time.Time, durationSeconds int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE activity_sessions
		SET last_heartbeat = $2, duration_seconds = $3
		WHERE id = $1`, sessionID, lastHeartbeat, durationSeconds)
	return err
}

// FinalizeDuration freezes a stale session's duration at its own last
// heartbeat before a new session opens.
func (r *SessionRepo) FinalizeDuration(ctx context.Context, sessionID uuid.UUID, durationSeconds int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE activity_sessions
		SET duration_seconds = $2
		WHERE id = $1`, sessionID, durationSeconds)
	return err
}

func (r *SessionRepo) ListByInstall(ctx context.Context, installID string, limit int) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, install_id, start_time, last_heartbeat, duration_seconds, created_at
		FROM activity_sessions
		WHERE install_id = $1
		ORDER BY start_time DESC
		LIMIT $2`, installID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *SessionRepo) ListByReferral(ctx context.Context, referralCode string, limit int) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.install_id, s.start_time, s.last_heartbeat, s.duration_seconds, s.created_at
		FROM activity_sessions s
		JOIN installations i ON i.install_id = s.install_id
		WHERE i.referral_code = $1
		ORDER BY s.start_time DESC
		LIMIT $2`, referralCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

type sessionRows interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func collectSessions(rows sessionRows) ([]models.Session, error) {
	sessions := make([]models.Session, 0)
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.InstallID, &s.StartTime, &s.LastHeartbeat, &s.DurationSeconds, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
