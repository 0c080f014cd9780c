package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/bot/handlers"
	apperrors "github.com/astroline/astroline-bot/internal/errors"
	"github.com/astroline/astroline-bot/internal/payments"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	err    error
	panics bool
	events []payments.CompletedEvent
}

func (p *fakeProcessor) Process(ctx context.Context, event payments.CompletedEvent) (time.Time, bool, error) {
	if p.panics {
		panic("processor down")
	}

	p.events = append(p.events, event)
	if p.err != nil {
		return time.Time{}, false, p.err
	}

	return time.Now().Add(30 * 24 * time.Hour), true, nil
}

type fakePaymentContext struct {
	telebot.Context

	message *telebot.Message
	sender  *telebot.User
	sent    []string
}

func (c *fakePaymentContext) Message() *telebot.Message   { return c.message }
func (c *fakePaymentContext) Sender() *telebot.User       { return c.sender }
func (c *fakePaymentContext) Callback() *telebot.Callback { return nil }

func (c *fakePaymentContext) Text() string {
	if c.message == nil {
		return ""
	}
	return c.message.Text
}

func (c *fakePaymentContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

// wrappedPayment builds the payment handler the way registerTelebotHandlers
// does, with the recovery and error middlewares in front.
func wrappedPayment(proc handlers.PaymentProcessor) func(telebot.Context) error {
	log := testLogger()
	errHandler := apperrors.NewHandler(log, false)

	router := NewRouter(nil, log)
	router.Use(RecoveryMiddleware(log, errHandler))
	router.Use(ErrorHandlingMiddleware(errHandler))

	b := &Bot{router: router, log: log, errHandler: errHandler}
	pay := handlers.NewPayment(proc, 30, log)

	return b.throughMiddlewares(pay.Completed)
}

func paymentContext() *fakePaymentContext {
	return &fakePaymentContext{
		sender: &telebot.User{ID: 42},
		message: &telebot.Message{
			Payment: &telebot.Payment{
				ProviderChargeID: "charge-1",
				Payload:          "subscription_42",
				Total:            49900,
				Currency:         "RUB",
			},
		},
	}
}

func TestPaymentUpdate_ProcessedThroughChain(t *testing.T) {
	proc := &fakeProcessor{}
	c := paymentContext()

	assert.NoError(t, wrappedPayment(proc)(c))

	assert.Len(t, proc.events, 1)
	assert.Equal(t, "charge-1", proc.events[0].PaymentID)
	assert.Equal(t, int64(49900), proc.events[0].Amount)
	assert.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Спасибо")
}

func TestPaymentUpdate_StoreFailureIsReportedNotReturned(t *testing.T) {
	proc := &fakeProcessor{err: apperrors.NewStoreError(fmt.Errorf("db down"))}
	c := paymentContext()

	// the chain swallows the error after reporting, telebot never sees it
	assert.NoError(t, wrappedPayment(proc)(c))

	assert.Len(t, c.sent, 1)
	assert.Equal(t, "Временная проблема, попробуйте позже", c.sent[0])
}

func TestPaymentUpdate_PanicIsRecovered(t *testing.T) {
	proc := &fakeProcessor{panics: true}
	c := paymentContext()

	assert.NoError(t, wrappedPayment(proc)(c))

	assert.Len(t, c.sent, 1)
	assert.Equal(t, "Временная проблема, попробуйте позже", c.sent[0])
}
