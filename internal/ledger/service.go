// Package ledger implements the bookkeeping workflows between persons:
// proposing, confirming and rejecting transfers, keeping the pairwise
// balances, resolving them, and reading back history and notifications.
package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/store"
)

// Actor is the caller of a workflow operation.
type Actor struct {
	PersonID int64
	SiteID   int64
}

// ValidationError reports invalid input. Nothing is written when one is
// returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Options holds workflow defaults. Zero fields take the package defaults.
type Options struct {
	NotificationDays int
	RecentDays       int
	RecentLimit      int
}

const (
	defaultNotificationDays = 3
	defaultRecentDays       = 10
	defaultRecentLimit      = 15
)

func (o Options) withDefaults() Options {
	if o.NotificationDays <= 0 {
		o.NotificationDays = defaultNotificationDays
	}
	if o.RecentDays <= 0 {
		o.RecentDays = defaultRecentDays
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = defaultRecentLimit
	}
	return o
}

// Service runs ledger workflows against a store and announces committed
// changes on a publisher.
type Service struct {
	store  store.Store
	pub    events.Publisher
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewService creates a ledger Service. A nil publisher discards events and
// a nil logger discards logs.
func NewService(st store.Store, pub events.Publisher, logger *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		pub:    pub,
		logger: logger,
		opts:   opts.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// publish sends e after its changes are committed. Delivery failures are
// logged and never reach the caller.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.Stamp(s.now())
	if err := s.pub.Publish(ctx, e); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("type", string(e.Type)),
			zap.String("event_id", e.ID),
			zap.Error(err))
	}
}

func (s *Service) daysAgo(days int) time.Time {
	return s.now().AddDate(0, 0, -days)
}
