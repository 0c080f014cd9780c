// Package delivery composes the daily send: profile lookup, forecast
// generation, subscription gating and the outbound transport call.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/astroline/astroline-bot/internal/domain"
	"github.com/astroline/astroline-bot/internal/forecast"
	"github.com/astroline/astroline-bot/internal/profile"
	"github.com/astroline/astroline-bot/pkg/metrics"
)

// UpsellSuffix is appended to forecasts of users without an active
// subscription.
const UpsellSuffix = "\n\n🔔 Чтобы получать неограниченные прогнозы и бонусы, оформи подписку через меню /menu."

// ProfileSource is the slice of the profile service the deliverer needs.
type ProfileSource interface {
	Get(ctx context.Context, userID int64) (*domain.Profile, error)
	IsActive(ctx context.Context, userID int64) (bool, error)
}

// Sender pushes text to a chat. Implemented by the telegram transport.
type Sender interface {
	SendText(chatID int64, text string) error
}

// Deliverer is the scheduler's delivery callback.
type Deliverer struct {
	profiles ProfileSource
	sender   Sender
	log      *slog.Logger
	now      func() time.Time
}

// New constructs a Deliverer.
func New(profiles ProfileSource, sender Sender, log *slog.Logger) *Deliverer {
	if log == nil {
		log = slog.Default()
	}

	return &Deliverer{
		profiles: profiles,
		sender:   sender,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (d *Deliverer) WithClock(now func() time.Time) *Deliverer {
	d.now = now
	return d
}

// Deliver sends the daily forecast to one user. Every failure mode is
// absorbed here: a missing profile is a silent skip (deleted concurrently),
// a transport error abandons this occurrence only. Nothing propagates back
// into the trigger loop.
func (d *Deliverer) Deliver(ctx context.Context, userID int64) {
	p, err := d.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotRegistered) {
			d.log.Info("skipping delivery, profile is gone", slog.Int64("user_id", userID))
			metrics.RecordDelivery("skipped")
			return
		}

		d.log.Error("failed to load profile for delivery", slog.Int64("user_id", userID), slog.Any("error", err))
		metrics.RecordDelivery("store_error")
		return
	}

	text := d.Compose(ctx, p)

	if err := d.sender.SendText(p.ChatID, text); err != nil {
		d.log.Error("failed to send daily forecast",
			slog.Int64("user_id", userID),
			slog.Int64("chat_id", p.ChatID),
			slog.Any("error", err),
		)
		metrics.RecordDelivery("transport_error")
		return
	}

	metrics.RecordDelivery("sent")
}

// Compose builds the forecast text for a profile, appending the upsell
// suffix when the subscription is inactive. Activeness is recomputed on
// every call.
func (d *Deliverer) Compose(ctx context.Context, p *domain.Profile) string {
	text := forecast.Generate(p.Name, p.BirthDate, p.BirthTime, d.now())

	active, err := d.profiles.IsActive(ctx, p.UserID)
	if err != nil {
		// When in doubt, show the upsell rather than fail the send.
		d.log.Error("failed to check subscription", slog.Int64("user_id", p.UserID), slog.Any("error", err))
		active = false
	}

	if !active {
		text += UpsellSuffix
	}

	return text
}
