package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/astroline/astroline-bot/internal/idempotency"
	"github.com/astroline/astroline-bot/pkg/metrics"
)

const (
	paymentStatusCompleted = "completed"

	// dedupTTL bounds how long a completed payment id keeps absorbing
	// redeliveries. Replays beyond it still hit the database upsert.
	dedupTTL = 24 * time.Hour
)

// CompletedEvent is a provider-confirmed successful payment.
type CompletedEvent struct {
	PaymentID string
	Payload   string
	Amount    int64
	Currency  string
}

// SubscriptionStore is the slice of the profile service the processor needs.
type SubscriptionStore interface {
	RecordPayment(ctx context.Context, paymentID string, userID, amount int64, currency, status string) error
	ApplySubscription(ctx context.Context, userID int64, period time.Duration) (time.Time, error)
}

// Processor turns payment confirmations into subscription extensions,
// exactly once per payment id.
type Processor struct {
	store  SubscriptionStore
	idem   idempotency.Manager
	log    *slog.Logger
	period time.Duration
}

// NewProcessor builds a Processor. period is the subscription length granted
// per successful payment.
func NewProcessor(store SubscriptionStore, idem idempotency.Manager, period time.Duration, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		store:  store,
		idem:   idem,
		log:    log,
		period: period,
	}
}

// Process records the payment and extends the payer's subscription. A
// duplicate delivery of an already-processed payment reports applied=false
// with no error and changes nothing.
func (p *Processor) Process(ctx context.Context, event CompletedEvent) (expiry time.Time, applied bool, err error) {
	userID, err := ParsePayload(event.Payload)
	if err != nil {
		metrics.RecordPayment("bad_payload")
		return time.Time{}, false, err
	}

	key := "payment:" + event.PaymentID

	executed, err := p.idem.Execute(ctx, key, dedupTTL, func(ctx context.Context) error {
		if err := p.store.RecordPayment(ctx, event.PaymentID, userID, event.Amount, event.Currency, paymentStatusCompleted); err != nil {
			return fmt.Errorf("record payment %s: %w", event.PaymentID, err)
		}

		expiry, err = p.store.ApplySubscription(ctx, userID, p.period)
		if err != nil {
			return fmt.Errorf("apply subscription for user %d: %w", userID, err)
		}

		return nil
	})
	if err != nil {
		metrics.RecordPayment("failed")
		return time.Time{}, false, err
	}

	if !executed {
		metrics.RecordPayment("duplicate")
		p.log.Info("duplicate payment event ignored",
			slog.String("payment_id", event.PaymentID),
			slog.Int64("user_id", userID),
		)
		return time.Time{}, false, nil
	}

	metrics.RecordPayment("completed")
	p.log.Info("payment processed",
		slog.String("payment_id", event.PaymentID),
		slog.Int64("user_id", userID),
		slog.Int64("amount", event.Amount),
		slog.String("currency", event.Currency),
		slog.Time("subscription_expiry", expiry),
	)

	return expiry, true, nil
}
