package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/bot/keyboard"
	"github.com/astroline/astroline-bot/internal/domain"
	"github.com/astroline/astroline-bot/internal/payments"
	"github.com/astroline/astroline-bot/internal/profile"
	"github.com/astroline/astroline-bot/internal/state"
)

// Menu serves /menu and the inline actions reachable from it.
type Menu struct {
	fsm           state.Machine
	profiles      ProfileService
	keyboard      *keyboard.Builder
	botUsername   string
	providerToken string
	priceAmount   int64
	currency      string
	log           *slog.Logger
}

// NewMenu builds the menu handler set.
func NewMenu(
	fsm state.Machine,
	profiles ProfileService,
	kb *keyboard.Builder,
	botUsername string,
	providerToken string,
	priceAmount int64,
	currency string,
	log *slog.Logger,
) *Menu {
	if log == nil {
		log = slog.Default()
	}

	return &Menu{
		fsm:           fsm,
		profiles:      profiles,
		keyboard:      kb,
		botUsername:   botUsername,
		providerToken: providerToken,
		priceAmount:   priceAmount,
		currency:      currency,
		log:           log,
	}
}

// Show handles /menu.
func (h *Menu) Show(c telebot.Context) error {
	p, err := h.requireProfile(c)
	if err != nil || p == nil {
		return err
	}

	return c.Send(textChooseAction, h.keyboard.MainMenu())
}

// EditData starts the name edit dialogue.
func (h *Menu) EditData(c telebot.Context) error {
	p, err := h.requireProfile(c)
	if err != nil || p == nil {
		return err
	}

	ctx := context.Background()
	if err := h.fsm.Begin(ctx, p.UserID, p.ChatID, state.StateEditName, state.Draft{}); err != nil {
		return err
	}

	h.respond(c)
	return c.Send(textAskNewName)
}

// EditTime starts the delivery time edit dialogue.
func (h *Menu) EditTime(c telebot.Context) error {
	p, err := h.requireProfile(c)
	if err != nil || p == nil {
		return err
	}

	ctx := context.Background()
	if err := h.fsm.Begin(ctx, p.UserID, p.ChatID, state.StateEditTime, state.Draft{}); err != nil {
		return err
	}

	h.respond(c)
	return c.Send(textAskNewTime)
}

// RefStatus reports the referral count, points and the user's deep link.
func (h *Menu) RefStatus(c telebot.Context) error {
	p, err := h.requireProfile(c)
	if err != nil || p == nil {
		return err
	}

	status, err := h.profiles.ReferralStatus(context.Background(), p.UserID)
	if err != nil {
		return err
	}

	link := ""
	if p.ReferralCode != "" {
		link = ReferralLink(h.botUsername, p.ReferralCode)
	}

	h.respond(c)
	return c.Send(fmt.Sprintf(textRefStatus, status.ReferredCount, status.Points, link))
}

// BuySubscription sends the subscription invoice.
func (h *Menu) BuySubscription(c telebot.Context) error {
	p, err := h.requireProfile(c)
	if err != nil || p == nil {
		return err
	}

	desc := payments.BuildInvoiceDescriptor(p.UserID, h.priceAmount, h.currency)
	invoice := &telebot.Invoice{
		Title:       desc.Title,
		Description: desc.Description,
		Payload:     desc.Payload,
		Currency:    desc.Currency,
		Token:       h.providerToken,
		Prices: []telebot.Price{
			{Label: "Подписка на месяц", Amount: int(desc.Amount)},
		},
	}

	h.respond(c)
	return c.Send(invoice)
}

// requireProfile resolves the sender's profile. Unregistered users get the
// /start hint and a nil profile with no error.
func (h *Menu) requireProfile(c telebot.Context) (*domain.Profile, error) {
	if c.Sender() == nil {
		return nil, nil
	}

	p, err := h.profiles.Get(context.Background(), c.Sender().ID)
	if err != nil {
		if errors.Is(err, profile.ErrNotRegistered) {
			h.respond(c)
			return nil, c.Send(textNotRegistered)
		}
		return nil, err
	}

	return p, nil
}

func (h *Menu) respond(c telebot.Context) {
	if c.Callback() == nil {
		return
	}
	if err := c.Respond(); err != nil {
		h.log.Warn("failed to answer callback", slog.Any("error", err))
	}
}
