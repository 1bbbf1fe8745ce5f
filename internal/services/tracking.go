package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"connectez-backend/internal/models"
)

// Timing constants for the activity accounting core.
//
// The extension batches heartbeats roughly every 30 seconds. The continuation
// window decides whether a heartbeat extends the current session or opens a
// new one; the freshness window only drives the online badge and is kept
// separate so UI tuning never changes accounting.
const (
	// ContinuationWindow is the max gap between heartbeats still counted as
	// the same activity session (2x the batch interval, tolerates one late
	// beat).
	ContinuationWindow = 60 * time.Second

	// FreshnessWindow is the max heartbeat age still shown as "online".
	FreshnessWindow = 45 * time.Second

	// ActiveUserWindow is the lookback for the dashboard "active users" count.
	ActiveUserWindow = 24 * time.Hour

	// MaxClientHintSeconds caps the client-reported elapsed hint. The hint is
	// only used for the first tick of a session, where there is no prior
	// server timestamp to diff against; once a session is open, accounting
	// uses server-clock deltas exclusively.
	MaxClientHintSeconds = 5

	// DefaultFirstTickSeconds is credited on a session's first tick when the
	// client sends no hint.
	DefaultFirstTickSeconds = 1

	// ForcedOfflineBackdate is how far a force-offline heartbeat rewinds the
	// last-heartbeat timestamp, pushing the installation well outside the
	// freshness window.
	ForcedOfflineBackdate = 10 * time.Minute
)

// InstallationStore is the registry of installations.
type InstallationStore interface {
	GetByInstallID(ctx context.Context, installID string) (*models.Installation, error)
	FindByDeviceFingerprint(ctx context.Context, referralCode, fingerprint string) (*models.Installation, error)
	Create(ctx context.Context, inst *models.Installation) error
	Reactivate(ctx context.Context, installID string, now time.Time) error
	SetOptIn(ctx context.Context, installID string, optedIn bool) error
	MarkUninstalled(ctx context.Context, installID string, now time.Time) error
	RefreshLastActive(ctx context.Context, installID string, at time.Time) error
	CreditSeconds(ctx context.Context, installID string, delta int64) error
}

// SessionStore is the append/update ledger of activity sessions.
type SessionStore interface {
	MostRecent(ctx context.Context, installID string) (*models.Session, error)
	Start(ctx context.Context, s *models.Session) error
	Continue(ctx context.Context, sessionID uuid.UUID, lastHeartbeat time.Time, durationSeconds int) error
	FinalizeDuration(ctx context.Context, sessionID uuid.UUID, durationSeconds int) error
}

// ReferrerStore resolves referral codes to registered users.
type ReferrerStore interface {
	GetByReferralCode(ctx context.Context, referralCode string) (*models.User, error)
}

// StatsNotifier schedules a dashboard stats refresh for a referral code.
// Delivery is best-effort and must never block heartbeat handling.
type StatsNotifier interface {
	StatsChanged(referralCode string)
}

type TrackingService struct {
	installs InstallationStore
	sessions SessionStore
	users    ReferrerStore
	notifier StatsNotifier
	now      func() time.Time
}

func NewTrackingService(installs InstallationStore, sessions SessionStore, users ReferrerStore, notifier StatsNotifier) *TrackingService {
	return &TrackingService{
		installs: installs,
		sessions: sessions,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

type InstallRequest struct {
	ReferralCode      string
	InstallID         string
	DeviceFingerprint string
	ExtensionID       *uuid.UUID
}

type InstallResult struct {
	InstallID string `json:"install_id"`
	Reinstall bool   `json:"reinstall"`
}

type HeartbeatRequest struct {
	InstallID string
	// ClientSeconds is the optional client-reported elapsed hint. Unreliable
	// (background throttling, suspended timers), so it is clamped and only
	// trusted for a session's first tick.
	ClientSeconds *int64
	ForceOffline  bool
}

type HeartbeatResult struct {
	OptInRequired   bool  `json:"opt_in_required,omitempty"`
	ForcedOffline   bool  `json:"forced_offline,omitempty"`
	SessionStarted  bool  `json:"session_started,omitempty"`
	CreditedSeconds int64 `json:"credited_seconds"`
}

// RegisterInstall is an idempotent upsert keyed by install id: a reinstall on
// the same browser reactivates the existing row instead of creating a
// duplicate.
func (s *TrackingService) RegisterInstall(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	if req.ReferralCode == "" || req.InstallID == "" {
		return nil, &ValidationError{Fields: map[string]string{
			"install_id": "referral_code and install_id are required",
		}}
	}

	now := s.now().UTC()

	// At most one installation per device per referrer. A matching
	// fingerprint on the same install id is the reinstall case, not a
	// duplicate device.
	if req.DeviceFingerprint != "" {
		existing, err := s.installs.FindByDeviceFingerprint(ctx, req.ReferralCode, req.DeviceFingerprint)
		if err == nil && existing.InstallID != req.InstallID {
			return nil, &DuplicateDeviceError{Message: "This device has already been registered"}
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	user, err := s.users.GetByReferralCode(ctx, req.ReferralCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Invalid referral code"}
		}
		return nil, err
	}

	existing, err := s.installs.GetByInstallID(ctx, req.InstallID)
	if err == nil {
		if err := s.installs.Reactivate(ctx, req.InstallID, now); err != nil {
			return nil, err
		}
		s.notifyStats(existing.ReferralCode)
		return &InstallResult{InstallID: req.InstallID, Reinstall: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	inst := &models.Installation{
		InstallID:    req.InstallID,
		ReferralCode: req.ReferralCode,
		UserID:       user.ID,
		ExtensionID:  req.ExtensionID,
	}
	if req.DeviceFingerprint != "" {
		inst.DeviceFingerprint = &req.DeviceFingerprint
	}

	if err := s.installs.Create(ctx, inst); err != nil {
		return nil, err
	}

	s.notifyStats(req.ReferralCode)
	return &InstallResult{InstallID: inst.InstallID}, nil
}

// Heartbeat runs the per-heartbeat accounting state machine.
//
// The last-heartbeat refresh happens unconditionally so the online badge
// tracks connectivity even without opt-in. Once that refresh has committed,
// accounting failures are logged and the heartbeat still succeeds: losing one
// tick's credit is immaterial, a failed heartbeat response would make the
// client back off.
func (s *TrackingService) Heartbeat(ctx context.Context, req HeartbeatRequest) (*HeartbeatResult, error) {
	now := s.now().UTC()

	inst, err := s.installs.GetByInstallID(ctx, req.InstallID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Installation not found"}
		}
		return nil, err
	}

	if req.ForceOffline {
		if err := s.installs.RefreshLastActive(ctx, req.InstallID, now.Add(-ForcedOfflineBackdate)); err != nil {
			return nil, err
		}
		s.notifyStats(inst.ReferralCode)
		return &HeartbeatResult{ForcedOffline: true}, nil
	}

	if err := s.installs.RefreshLastActive(ctx, req.InstallID, now); err != nil {
		return nil, err
	}

	res := &HeartbeatResult{}

	if !inst.OptedIn {
		res.OptInRequired = true
		s.notifyStats(inst.ReferralCode)
		return res, nil
	}

	last, err := s.sessions.MostRecent(ctx, req.InstallID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// NoSession: open the first session; credit the clamped client hint
		// since there is no prior timestamp to diff against.
		res.CreditedSeconds = s.openSession(ctx, req.InstallID, now, req.ClientSeconds)
		res.SessionStarted = true

	case err != nil:
		log.Printf("heartbeat: failed to load last session for %s: %v", shortID(req.InstallID), err)

	case now.Sub(last.LastHeartbeat) < ContinuationWindow:
		// OpenSession: credit exactly the server-observed delta in whole
		// seconds. A replayed heartbeat lands here with a near-zero delta and
		// contributes nothing instead of double-crediting.
		elapsed := int64(now.Sub(last.LastHeartbeat) / time.Second)
		if elapsed > 0 {
			if err := s.installs.CreditSeconds(ctx, req.InstallID, elapsed); err != nil {
				log.Printf("heartbeat: failed to credit %ds for %s: %v", elapsed, shortID(req.InstallID), err)
			} else {
				res.CreditedSeconds = elapsed
			}
		}
		duration := int(now.Sub(last.StartTime) / time.Second)
		if err := s.sessions.Continue(ctx, last.ID, now, duration); err != nil {
			log.Printf("heartbeat: failed to continue session for %s: %v", shortID(req.InstallID), err)
		}

	default:
		// StaleSession: freeze the old session at its own last heartbeat,
		// then start fresh exactly like the NoSession case.
		final := int(last.LastHeartbeat.Sub(last.StartTime) / time.Second)
		if err := s.sessions.FinalizeDuration(ctx, last.ID, final); err != nil {
			log.Printf("heartbeat: failed to finalize session for %s: %v", shortID(req.InstallID), err)
		}
		res.CreditedSeconds = s.openSession(ctx, req.InstallID, now, req.ClientSeconds)
		res.SessionStarted = true
	}

	s.notifyStats(inst.ReferralCode)
	return res, nil
}

// SetOptIn flips the accrual flag. It never retroactively changes seconds
// already credited.
func (s *TrackingService) SetOptIn(ctx context.Context, installID string, optedIn bool) error {
	inst, err := s.installs.GetByInstallID(ctx, installID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Installation not found"}
		}
		return err
	}

	if err := s.installs.SetOptIn(ctx, installID, optedIn); err != nil {
		return err
	}

	s.notifyStats(inst.ReferralCode)
	return nil
}

// Uninstall marks the installation uninstalled. Terminal and idempotent:
// repeated calls are no-ops and only a fresh RegisterInstall may reactivate.
func (s *TrackingService) Uninstall(ctx context.Context, installID string) error {
	inst, err := s.installs.GetByInstallID(ctx, installID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Installation not found"}
		}
		return err
	}

	if err := s.installs.MarkUninstalled(ctx, installID, s.now().UTC()); err != nil {
		return err
	}

	s.notifyStats(inst.ReferralCode)
	return nil
}

func (s *TrackingService) openSession(ctx context.Context, installID string, now time.Time, hint *int64) int64 {
	sess := &models.Session{InstallID: installID, StartTime: now}
	if err := s.sessions.Start(ctx, sess); err != nil {
		log.Printf("heartbeat: failed to start session for %s: %v", shortID(installID), err)
	}

	credit := clampClientHint(hint)
	if credit > 0 {
		if err := s.installs.CreditSeconds(ctx, installID, credit); err != nil {
			log.Printf("heartbeat: failed to credit first tick for %s: %v", shortID(installID), err)
			return 0
		}
	}
	return credit
}

func clampClientHint(hint *int64) int64 {
	if hint == nil {
		return DefaultFirstTickSeconds
	}
	if *hint < 0 {
		return 0
	}
	if *hint > MaxClientHintSeconds {
		return MaxClientHintSeconds
	}
	return *hint
}

func (s *TrackingService) notifyStats(referralCode string) {
	if s.notifier != nil {
		s.notifier.StatsChanged(referralCode)
	}
}

func shortID(installID string) string {
	if len(installID) > 8 {
		return installID[:8]
	}
	return installID
}
