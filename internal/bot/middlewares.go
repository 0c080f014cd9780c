package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/bot/handlers"
	errors "github.com/astroline/astroline-bot/internal/errors"
	"github.com/astroline/astroline-bot/internal/ratelimit"
	"github.com/astroline/astroline-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "⚠️ Что-то пошло не так. Попробуйте позже."
					if errHandler != nil {
						appErr := errors.NewStoreError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := updateAction(c)

			log.Info("handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// MetricsMiddleware counts handled updates and their latency per command.
func MetricsMiddleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			err := next(c)

			status := "success"
			if err != nil {
				status = "error"
			}
			metrics.RecordCommand(commandLabel(c), status, time.Since(start))

			return err
		}
	}
}

// RateLimitMiddleware throttles per-user update volume. Limiter failures fail
// open so Redis trouble does not take the bot down.
func RateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if limiter == nil || rules == nil || !rules.Enabled() || c == nil || c.Sender() == nil {
				return next(c)
			}

			userID := c.Sender().ID
			if rules.IsWhitelisted(userID) {
				return next(c)
			}

			limit, window, err := rules.PerUserLimit()
			if err != nil {
				log.Error("invalid rate limit rule", slog.Any("error", err))
				return next(c)
			}

			result, err := limiter.Check(context.Background(), fmt.Sprintf("user:%d", userID), limit, window)
			if err != nil {
				log.Error("rate limit check failed", slog.Int64("user_id", userID), slog.Any("error", err))
				return next(c)
			}

			if !result.Allowed {
				log.Warn("rate limited", slog.Int64("user_id", userID))
				return c.Send("Слишком много сообщений. Подожди немного 🙏")
			}

			return next(c)
		}
	}
}

func updateAction(c telebot.Context) string {
	if c == nil {
		return ""
	}
	if cb := c.Callback(); cb != nil {
		return strings.TrimPrefix(cb.Data, "\f")
	}
	return c.Text()
}

func commandLabel(c telebot.Context) string {
	action := updateAction(c)

	if strings.HasPrefix(action, "/") {
		if idx := strings.IndexByte(action, ' '); idx > 0 {
			return action[:idx]
		}
		return action
	}

	if c != nil && c.Callback() != nil {
		return "callback:" + action
	}

	return "message"
}
