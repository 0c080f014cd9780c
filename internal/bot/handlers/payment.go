package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/payments"
)

// PaymentProcessor applies confirmed payments, exactly once each.
type PaymentProcessor interface {
	Process(ctx context.Context, event payments.CompletedEvent) (time.Time, bool, error)
}

// Payment handles the Telegram payments flow: pre-checkout approval and
// successful-payment confirmations.
type Payment struct {
	processor  PaymentProcessor
	periodDays int
	log        *slog.Logger
}

// NewPayment builds the payment handler set.
func NewPayment(processor PaymentProcessor, periodDays int, log *slog.Logger) *Payment {
	if log == nil {
		log = slog.Default()
	}

	return &Payment{
		processor:  processor,
		periodDays: periodDays,
		log:        log,
	}
}

// Checkout answers the pre-checkout query affirmatively. The payload was
// issued by this bot and the real verification happens on confirmation.
func (h *Payment) Checkout(c telebot.Context) error {
	return c.Accept()
}

// Completed records the payment and extends the subscription. Duplicate
// confirmations of the same charge still get the thank-you reply but change
// nothing.
func (h *Payment) Completed(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}

	pay := msg.Payment
	payload := pay.Payload
	if _, err := payments.ParsePayload(payload); err != nil && c.Sender() != nil {
		// Attribute the charge to the paying account when the payload is
		// not one of ours.
		h.log.Warn("payment with foreign payload, falling back to sender",
			slog.String("payload", payload),
			slog.Int64("user_id", c.Sender().ID),
		)
		payload = fmt.Sprintf("subscription_%d", c.Sender().ID)
	}

	_, _, err := h.processor.Process(context.Background(), payments.CompletedEvent{
		PaymentID: pay.ProviderChargeID,
		Payload:   payload,
		Amount:    int64(pay.Total),
		Currency:  pay.Currency,
	})
	if err != nil {
		return err
	}

	return c.Send(fmt.Sprintf(textPaymentThanks, h.periodDays))
}
