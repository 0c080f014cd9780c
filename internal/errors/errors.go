package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError marks malformed user input (date, time, empty text).
// It is always recovered locally by re-prompting the current dialogue step.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: fmt.Sprintf("Неверный формат данных. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewStoreError marks a persistence failure. This is the only class that
// propagates to the operator as a hard failure, since it threatens the
// all-or-nothing referral-credit invariant.
func NewStoreError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("Store error: %s", underlyingMsg),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError marks a failed outbound send. Delivery is abandoned for
// this occurrence only; the schedule keeps running.
func NewTransportError(cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     "Transport error",
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewNotFoundError marks a missing profile or referral code. Callers treat
// it as a benign skip, not a failure.
func NewNotFoundError(msg string) *AppError {
	return &AppError{
		Code:        "E404",
		Message:     msg,
		UserMessage: "Ты ещё не зарегистрирован(а). Используй /start, чтобы начать.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewStateError marks an operation that is impossible in the current
// conversation state.
func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}

// NewRateLimitError marks a user sending updates faster than the limiter allows.
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Слишком много запросов. Попробуйте через %d секунд", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
