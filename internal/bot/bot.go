// Package bot wires the Telegram transport: command routing, the
// registration dialogue, menu actions, payments and broadcast.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/bot/handlers"
	"github.com/astroline/astroline-bot/internal/bot/keyboard"
	errors "github.com/astroline/astroline-bot/internal/errors"
	"github.com/astroline/astroline-bot/internal/ratelimit"
	"github.com/astroline/astroline-bot/internal/state"
	"github.com/astroline/astroline-bot/pkg/config"
)

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	fsm        state.Machine
	router     *Router
	dispatcher *Dispatcher
	keyboard   *keyboard.Builder
	errHandler *errors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	fsm state.Machine,
	profiles handlers.ProfileService,
	schedule handlers.Rescheduler,
	processor handlers.PaymentProcessor,
	limiter ratelimit.Limiter,
	rules *ratelimit.Rules,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		Poller: &telebot.LongPoller{
			Timeout: cfg.Bot.PollTimeout,
		},
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(log)
	dispatcher := NewDispatcher(fsm, log)
	router := NewRouter(dispatcher, log)
	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		fsm:        fsm,
		router:     router,
		dispatcher: dispatcher,
		keyboard:   kb,
		errHandler: errHandler,
	}

	b.setupRouter(profiles, schedule, processor, limiter, rules)
	b.registerTelebotHandlers(processor)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// SendText delivers a plain text message to a chat. It serves both the
// scheduled daily delivery and /broadcast.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.telebot.Send(telebot.ChatID(chatID), text)
	return err
}

func (b *Bot) setupRouter(
	profiles handlers.ProfileService,
	schedule handlers.Rescheduler,
	processor handlers.PaymentProcessor,
	limiter ratelimit.Limiter,
	rules *ratelimit.Rules,
) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(RateLimitMiddleware(limiter, rules, b.log))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(MetricsMiddleware())

	reg := handlers.NewRegistration(
		b.fsm, profiles, schedule, b.keyboard,
		b.cfg.Bot.Username, b.cfg.Delivery.DefaultMessageTime, b.log,
	)
	menu := handlers.NewMenu(
		b.fsm, profiles, b.keyboard,
		b.cfg.Bot.Username, b.cfg.Bot.ProviderToken,
		b.cfg.Subscription.PriceAmount, b.cfg.Subscription.Currency, b.log,
	)
	broadcast := handlers.NewBroadcast(profiles, b, b.cfg.Bot.IsAdmin, b.log)

	b.router.RegisterCommand(CommandStart, reg.Start)
	b.router.RegisterCommand(CommandMenu, menu.Show)
	b.router.RegisterCommand(CommandCancel, reg.Cancel)
	b.router.RegisterCommand(CommandBroadcast, broadcast.Handle)

	b.router.RegisterCallback(CallbackConfirmProfile, reg.Confirm)
	b.router.RegisterCallback(CallbackEditData, menu.EditData)
	b.router.RegisterCallback(CallbackEditTime, menu.EditTime)
	b.router.RegisterCallback(CallbackRefStatus, menu.RefStatus)
	b.router.RegisterCallback(CallbackBuySubscription, menu.BuySubscription)

	b.dispatcher.RegisterStateHandler(state.StateName, reg.HandleName)
	b.dispatcher.RegisterStateHandler(state.StateBirthDate, reg.HandleBirthDate)
	b.dispatcher.RegisterStateHandler(state.StateBirthTime, reg.HandleBirthTime)
	b.dispatcher.RegisterStateHandler(state.StateBirthPlace, reg.HandleBirthPlace)
	b.dispatcher.RegisterStateHandler(state.StateMessageTime, reg.HandleMessageTime)
	b.dispatcher.RegisterStateHandler(state.StateConfirm, reg.HandleConfirmPrompt)
	b.dispatcher.RegisterStateHandler(state.StateEditName, reg.HandleEditName)
	b.dispatcher.RegisterStateHandler(state.StateEditTime, reg.HandleEditTime)
}

func (b *Bot) registerTelebotHandlers(processor handlers.PaymentProcessor) {
	pay := handlers.NewPayment(processor, b.cfg.Subscription.PeriodDays, b.log)

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
	b.telebot.Handle(telebot.OnCheckout, b.throughMiddlewares(pay.Checkout))
	b.telebot.Handle(telebot.OnPayment, b.throughMiddlewares(pay.Completed))
}

// throughMiddlewares runs a handler registered directly on telebot through
// the router's middleware chain, so payment updates get the same recovery,
// error reporting and metrics as routed updates.
func (b *Bot) throughMiddlewares(h handlers.Handler) func(telebot.Context) error {
	return func(c telebot.Context) error {
		return b.router.executeHandler(h, c)
	}
}
