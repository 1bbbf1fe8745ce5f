package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"connectez-backend/internal/models"
)

type InstallationRepo struct {
	pool *pgxpool.Pool
}

func NewInstallationRepo(pool *pgxpool.Pool) *InstallationRepo {
	return &InstallationRepo{pool: pool}
}

const installationColumns = `id, install_id, referral_code, user_id, extension_id, device_fingerprint,
	status, opted_in, active_seconds, last_active_at, installed_at, uninstalled_at`

func scanInstallation(row interface{ Scan(...any) error }) (*models.Installation, error) {
	inst := &models.Installation{}
	err := row.Scan(
		&inst.ID, &inst.InstallID, &inst.ReferralCode, &inst.UserID, &inst.ExtensionID,
		&inst.DeviceFingerprint, &inst.Status, &inst.OptedIn, &inst.ActiveSeconds,
		&inst.LastActiveAt, &inst.InstalledAt, &inst.UninstalledAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *InstallationRepo) Create(ctx context.Context, inst *models.Installation) error {
	query := `
		INSERT INTO installations (id, install_id, referral_code, user_id, extension_id, device_fingerprint, status, opted_in, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', FALSE, NOW())
		RETURNING status, opted_in, last_active_at, installed_at`

	inst.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		inst.ID, inst.InstallID, inst.ReferralCode, inst.UserID, inst.ExtensionID, inst.DeviceFingerprint,
	).Scan(&inst.Status, &inst.OptedIn, &inst.LastActiveAt, &inst.InstalledAt)
}

func (r *InstallationRepo) GetByInstallID(ctx context.Context, installID string) (*models.Installation, error) {
	return scanInstallation(r.pool.QueryRow(ctx,
		`SELECT `+installationColumns+` FROM installations WHERE install_id = $1`, installID))
}

func (r *InstallationRepo) FindByDeviceFingerprint(ctx context.Context, referralCode, fingerprint string) (*models.Installation, error) {
	return scanInstallation(r.pool.QueryRow(ctx,
		`SELECT `+installationColumns+` FROM installations
		 WHERE referral_code = $1 AND device_fingerprint = $2`, referralCode, fingerprint))
}

// Reactivate is the reinstall path of the register upsert: the existing row is
// brought back to active instead of inserting a duplicate for the install id.
func (r *InstallationRepo) Reactivate(ctx context.Context, installID string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE installations
		SET status = 'active', last_active_at = $2, uninstalled_at = NULL
		WHERE install_id = $1`, installID, now)
	return err
}

func (r *InstallationRepo) SetOptIn(ctx context.Context, installID string, optedIn bool) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE installations SET opted_in = $2 WHERE install_id = $1", installID, optedIn)
	return err
}

// MarkUninstalled is terminal: uninstalled_at is set once and the opt-in flag
// is frozen to false. Repeated calls are no-ops.
func (r *InstallationRepo) MarkUninstalled(ctx context.Context, installID string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE installations
		SET status = 'uninstalled',
			uninstalled_at = COALESCE(uninstalled_at, $2),
			opted_in = FALSE
		WHERE install_id = $1`, installID, now)
	return err
}

func (r *InstallationRepo) RefreshLastActive(ctx context.Context, installID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE installations SET last_active_at = $2 WHERE install_id = $1", installID, at)
	return err
}

// CreditSeconds adds delta to the cumulative counter in a single atomic UPDATE
// so concurrent heartbeats for the same installation never lose credits. It
// also refreshes last_active_at, matching the original increment primitive.
func (r *InstallationRepo) CreditSeconds(ctx context.Context, installID string, delta int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE installations
		SET active_seconds = active_seconds + $2, last_active_at = NOW()
		WHERE install_id = $1`, installID, delta)
	return err
}

// MarkInactiveBefore is the lifecycle sweep: active installations whose last
// heartbeat is older than the cutoff move to inactive. Uninstalled rows are
// never touched.
func (r *InstallationRepo) MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE installations
		SET status = 'inactive'
		WHERE status = 'active' AND last_active_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *InstallationRepo) ListByReferral(ctx context.Context, referralCode string, since time.Time) ([]models.Installation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+installationColumns+` FROM installations
		WHERE referral_code = $1 AND installed_at >= $2
		ORDER BY installed_at ASC`, referralCode, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	installs := make([]models.Installation, 0)
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, err
		}
		installs = append(installs, *inst)
	}
	return installs, rows.Err()
}

func (r *InstallationRepo) ListRecent(ctx context.Context, limit int) ([]models.Installation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+installationColumns+` FROM installations
		ORDER BY installed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	installs := make([]models.Installation, 0)
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, err
		}
		installs = append(installs, *inst)
	}
	return installs, rows.Err()
}
