package preference

import (
	"context"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

// Store retrieves a user's delivery policy
type Store interface {
	GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
}

// Filter decides whether a channel may be used for a new dispatch. The
// decision is advisory: it never cancels a notification already sending.
type Filter struct {
	store Store
	now   func() time.Time
}

// NewFilter creates a new preference filter
func NewFilter(store Store) *Filter {
	return &Filter{store: store, now: time.Now}
}

// ShouldDeliver evaluates the delivery policy for one channel. Order:
// global channel flag, quiet hours, per-type override, default allow.
// Urgent notifications bypass quiet hours.
func (f *Filter) ShouldDeliver(ctx context.Context, userID string, ch domain.Channel, typ domain.EventType, priority domain.Priority) (bool, error) {
	prefs, err := f.store.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}

	if !prefs.ChannelEnabled(ch) {
		return false, nil
	}

	if priority != domain.PriorityUrgent && InQuietHours(prefs.QuietHours, f.now()) {
		return false, nil
	}

	if overrides, ok := prefs.TypeOverrides[typ]; ok {
		if allowed, ok := overrides[ch]; ok {
			return allowed, nil
		}
	}

	return true, nil
}

// AllowedChannels prunes a candidate channel set down to the channels the
// user's policy permits, preserving order
func (f *Filter) AllowedChannels(ctx context.Context, userID string, channels []domain.Channel, typ domain.EventType, priority domain.Priority) ([]domain.Channel, error) {
	var allowed []domain.Channel
	for _, ch := range channels {
		ok, err := f.ShouldDeliver(ctx, userID, ch, typ, priority)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed = append(allowed, ch)
		}
	}
	return allowed, nil
}

// InQuietHours reports whether the instant falls inside the configured
// window, evaluated as wall-clock time in the user's timezone. A window
// whose start is after its end wraps past midnight.
func InQuietHours(q domain.QuietHours, at time.Time) bool {
	if !q.Enabled {
		return false
	}

	start, ok := parseWallClock(q.Start)
	if !ok {
		return false
	}
	end, ok := parseWallClock(q.End)
	if !ok {
		return false
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := at.In(loc)
	now := local.Hour()*60 + local.Minute()

	if start <= end {
		return now >= start && now < end
	}
	// Overnight window, e.g. 22:00-08:00
	return now >= start || now < end
}

// parseWallClock parses "15:04" into minutes since midnight
func parseWallClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
