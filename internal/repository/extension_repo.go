package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"connectez-backend/internal/models"
)

type ExtensionRepo struct {
	pool *pgxpool.Pool
}

func NewExtensionRepo(pool *pgxpool.Pool) *ExtensionRepo {
	return &ExtensionRepo{pool: pool}
}

func (r *ExtensionRepo) Create(ctx context.Context, ext *models.Extension) error {
	query := `
		INSERT INTO extensions (id, user_id, name, store_url, platform)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	ext.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		ext.ID, ext.UserID, ext.Name, ext.StoreURL, ext.Platform,
	).Scan(&ext.CreatedAt)
}

func (r *ExtensionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Extension, error) {
	ext := &models.Extension{}
	query := `SELECT id, user_id, name, store_url, platform, created_at
		FROM extensions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ext.ID, &ext.UserID, &ext.Name, &ext.StoreURL, &ext.Platform, &ext.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ext, nil
}

func (r *ExtensionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Extension, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, store_url, platform, created_at
		FROM extensions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exts := make([]models.Extension, 0)
	for rows.Next() {
		var e models.Extension
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.StoreURL, &e.Platform, &e.CreatedAt); err != nil {
			return nil, err
		}
		exts = append(exts, e)
	}
	return exts, rows.Err()
}

func (r *ExtensionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM extensions WHERE id = $1", id)
	return err
}
