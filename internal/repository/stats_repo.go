package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"connectez-backend/internal/models"
)

// StatsRepo computes the aggregate views served to dashboards. All counts are
// single queries with FILTER clauses rather than one query per counter.
type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) GetReferralStats(ctx context.Context, referralCode string, now time.Time, activeWindow, freshness time.Duration) (*models.ReferralStats, error) {
	stats := &models.ReferralStats{ReferralCode: referralCode}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE opted_in),
			COUNT(*) FILTER (WHERE status = 'active' AND last_active_at >= $2),
			COUNT(*) FILTER (WHERE status = 'inactive'),
			COUNT(*) FILTER (WHERE status = 'uninstalled'),
			COALESCE(SUM(active_seconds), 0)
		FROM installations
		WHERE referral_code = $1`,
		referralCode, now.Add(-activeWindow),
	).Scan(
		&stats.TotalInstalls, &stats.OptIns, &stats.ActiveUsers,
		&stats.InactiveInstalls, &stats.UninstalledInstalls, &stats.TotalActiveSeconds,
	)
	if err != nil {
		return nil, err
	}

	recent, err := r.recentInstalls(ctx, `i.referral_code = $1`, referralCode, now, freshness)
	if err != nil {
		return nil, err
	}
	stats.RecentInstalls = recent

	return stats, nil
}

func (r *StatsRepo) GetExtensionStats(ctx context.Context, extensionID uuid.UUID, now time.Time, activeWindow, freshness time.Duration) (*models.ExtensionStats, error) {
	stats := &models.ExtensionStats{ExtensionID: extensionID.String()}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE opted_in),
			COUNT(*) FILTER (WHERE status = 'active' AND last_active_at >= $2)
		FROM installations
		WHERE extension_id = $1`,
		extensionID, now.Add(-activeWindow),
	).Scan(&stats.TotalInstalls, &stats.OptIns, &stats.ActiveUsers)
	if err != nil {
		return nil, err
	}

	recent, err := r.recentInstalls(ctx, `i.extension_id = $1`, extensionID, now, freshness)
	if err != nil {
		return nil, err
	}
	stats.RecentInstalls = recent

	return stats, nil
}

// recentInstalls loads the latest installations matching the filter, each
// enriched with its most recent session bounds and a derived online flag.
func (r *StatsRepo) recentInstalls(ctx context.Context, filter string, arg any, now time.Time, freshness time.Duration) ([]models.RecentInstall, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prefixedInstallationColumns+`, ls.start_time, ls.last_heartbeat
		FROM installations i
		LEFT JOIN LATERAL (
			SELECT start_time, last_heartbeat
			FROM activity_sessions s
			WHERE s.install_id = i.install_id
			ORDER BY s.last_heartbeat DESC
			LIMIT 1
		) ls ON TRUE
		WHERE `+filter+`
		ORDER BY i.installed_at DESC
		LIMIT 10`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := make([]models.RecentInstall, 0)
	for rows.Next() {
		var ri models.RecentInstall
		var start, stop pgtype.Timestamptz
		err := rows.Scan(
			&ri.ID, &ri.InstallID, &ri.ReferralCode, &ri.UserID, &ri.ExtensionID,
			&ri.DeviceFingerprint, &ri.Status, &ri.OptedIn, &ri.ActiveSeconds,
			&ri.LastActiveAt, &ri.InstalledAt, &ri.UninstalledAt,
			&start, &stop,
		)
		if err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time
			ri.LastSessionStart = &t
		}
		if stop.Valid {
			t := stop.Time
			ri.LastSessionStop = &t
		}
		ri.IsOnline = ri.Installation.IsOnline(now, freshness)
		recent = append(recent, ri)
	}
	return recent, rows.Err()
}

const prefixedInstallationColumns = `i.id, i.install_id, i.referral_code, i.user_id, i.extension_id, i.device_fingerprint,
	i.status, i.opted_in, i.active_seconds, i.last_active_at, i.installed_at, i.uninstalled_at`

// DailyStats buckets installs, opt-ins, and distinct active installations per
// day over the trailing window, zero-filling days with no activity.
func (r *StatsRepo) DailyStats(ctx context.Context, referralCode string, days int, now time.Time) ([]models.DailyStat, error) {
	cutoff := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	buckets := make(map[string]*models.DailyStat, days)
	ordered := make([]*models.DailyStat, 0, days)
	for i := 0; i < days; i++ {
		date := cutoff.AddDate(0, 0, i).Format("2006-01-02")
		d := &models.DailyStat{Date: date}
		buckets[date] = d
		ordered = append(ordered, d)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT installed_at::date, COUNT(*), COUNT(*) FILTER (WHERE opted_in)
		FROM installations
		WHERE referral_code = $1 AND installed_at >= $2
		GROUP BY 1`, referralCode, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		var installs, optIns int
		if err := rows.Scan(&day, &installs, &optIns); err != nil {
			return nil, err
		}
		if d, ok := buckets[day.Format("2006-01-02")]; ok {
			d.Installs = installs
			d.OptIns = optIns
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT s.start_time::date, COUNT(DISTINCT s.install_id)
		FROM activity_sessions s
		JOIN installations i ON i.install_id = s.install_id
		WHERE i.referral_code = $1 AND s.start_time >= $2
		GROUP BY 1`, referralCode, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		var active int
		if err := rows.Scan(&day, &active); err != nil {
			return nil, err
		}
		if d, ok := buckets[day.Format("2006-01-02")]; ok {
			d.ActiveUsers = active
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.DailyStat, 0, days)
	for _, d := range ordered {
		out = append(out, *d)
	}
	return out, nil
}

// AdminOverview rolls every referrer up in one grouped query instead of a
// per-user fan-out.
func (r *StatsRepo) AdminOverview(ctx context.Context, now time.Time, activeWindow, freshness time.Duration) (*models.AdminOverview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			u.id, u.email, u.referral_code, u.created_at,
			COUNT(i.id),
			COUNT(i.id) FILTER (WHERE i.opted_in),
			COUNT(i.id) FILTER (WHERE i.status = 'active' AND i.last_active_at >= $1),
			COUNT(i.id) FILTER (WHERE i.status IN ('inactive', 'uninstalled')),
			COALESCE(SUM(i.active_seconds), 0),
			BOOL_OR(i.status != 'uninstalled' AND i.last_active_at >= $2)
		FROM users u
		LEFT JOIN installations i ON i.referral_code = u.referral_code
		GROUP BY u.id, u.email, u.referral_code, u.created_at
		ORDER BY u.created_at DESC`,
		now.Add(-activeWindow), now.Add(-freshness))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overview := &models.AdminOverview{Users: make([]models.AdminUserRow, 0)}
	for rows.Next() {
		var row models.AdminUserRow
		var id uuid.UUID
		var inactive int
		var online pgtype.Bool
		err := rows.Scan(
			&id, &row.Email, &row.ReferralCode, &row.CreatedAt,
			&row.TotalInstalls, &row.OptIns, &row.ActiveUsers,
			&inactive, &row.TotalActiveSeconds, &online,
		)
		if err != nil {
			return nil, err
		}
		row.ID = id.String()
		row.IsOnline = online.Valid && online.Bool

		overview.Totals.TotalUsers++
		overview.Totals.TotalInstalls += row.TotalInstalls
		overview.Totals.TotalOptIns += row.OptIns
		overview.Totals.TotalActiveUsers += row.ActiveUsers
		overview.Totals.TotalInactive += inactive
		overview.Totals.GrandTotalActiveSeconds += row.TotalActiveSeconds

		overview.Users = append(overview.Users, row)
	}
	return overview, rows.Err()
}

// IsNotFound reports whether err is the storage layer's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
