// Package payments holds the subscription checkout surface: invoice
// construction and processing of payment-completed events.
package payments

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// InvoiceDescriptor is everything the transport needs to start a checkout.
type InvoiceDescriptor struct {
	Title       string
	Description string
	// Payload identifies the purchase when the confirmation comes back.
	Payload  string
	Amount   int64 // smallest currency unit
	Currency string
}

const payloadPrefix = "subscription_"

// ErrBadPayload indicates an invoice payload that this bot did not issue.
var ErrBadPayload = errors.New("malformed invoice payload")

// BuildInvoiceDescriptor constructs the monthly-subscription invoice for a
// user. The user id is embedded in the payload so the confirmation event can
// be attributed even when the paying account differs.
func BuildInvoiceDescriptor(userID int64, amount int64, currency string) InvoiceDescriptor {
	return InvoiceDescriptor{
		Title:       "Астропрогноз – ежемесячная подписка",
		Description: "Полный доступ к ежедневным персональным прогнозам, ритуалам и цитатам.\nПодписка обновляется автоматически каждый месяц.",
		Payload:     payloadPrefix + strconv.FormatInt(userID, 10),
		Amount:      amount,
		Currency:    currency,
	}
}

// ParsePayload extracts the user id from an invoice payload.
func ParsePayload(payload string) (int64, error) {
	rest, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}

	userID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}

	return userID, nil
}
