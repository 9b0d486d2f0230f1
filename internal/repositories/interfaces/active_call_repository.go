package interfaces

import (
	"context"
	"time"

	"goride/internal/models"
)

// CountFilter narrows a countActive query (§4.2). A zero value counts
// every active row globally.
type CountFilter struct {
	ClientID string
}

// ExpireThresholds bounds how old a row in each active status may get
// before the sweeper calls it stuck (§4.8).
type ExpireThresholds struct {
	Processed time.Duration
	Ringing   time.Duration
	Ongoing   time.Duration
	Now       time.Time
	// OneTimeCleanup tags failureReason=one_time_cleanup_timeout instead
	// of webhook_timeout, and falls back to StartTime when
	// StatusTimestamp is missing.
	OneTimeCleanup bool
}

// ActiveCallRepository is the Active-Call Ledger (§4.1).
type ActiveCallRepository interface {
	// Insert writes a new ledger row. A duplicate callUUID is coalesced
	// into a success (I6) rather than returned as an error; the bool
	// result reports whether this call actually created a new row
	// (false means "already tracked").
	Insert(ctx context.Context, call *models.ActiveCall) (created bool, err error)

	// UpdateAfterStart enriches a row post-dispatch (Twilio SID
	// attachment).
	UpdateAfterStart(ctx context.Context, callUUID string, fields map[string]interface{}) error

	// Transition writes status, statusTimestamp=now, and any supplied
	// fields. Returns false if no row matched callUUID. Terminal rows
	// are sticky: transitioning an already-terminal row is a no-op
	// success (P3).
	Transition(ctx context.Context, callUUID string, newStatus models.CallStatus, fields map[string]interface{}) (found bool, err error)

	Get(ctx context.Context, callUUID string) (*models.ActiveCall, error)
	GetByTwilioSID(ctx context.Context, twilioCallSID string) (*models.ActiveCall, error)

	// CountActive returns the number of rows in an active status
	// matching the filter (§4.2).
	CountActive(ctx context.Context, filter CountFilter) (int64, error)

	// BulkExpire moves every stuck row to failed (§4.8). Returns the
	// number of rows transitioned.
	BulkExpire(ctx context.Context, thresholds ExpireThresholds) (int64, error)

	CountByCampaign(ctx context.Context, campaignID string) (int64, error)
}
