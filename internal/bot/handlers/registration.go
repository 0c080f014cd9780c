package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/astroline/astroline-bot/internal/bot/keyboard"
	"github.com/astroline/astroline-bot/internal/domain"
	"github.com/astroline/astroline-bot/internal/forecast"
	"github.com/astroline/astroline-bot/internal/profile"
	"github.com/astroline/astroline-bot/internal/state"
	"github.com/astroline/astroline-bot/pkg/metrics"
)

// ProfileService is the slice of the profile service the handlers need.
type ProfileService interface {
	Register(ctx context.Context, reg profile.Registration) (*domain.Profile, bool, error)
	Get(ctx context.Context, userID int64) (*domain.Profile, error)
	UpdateName(ctx context.Context, userID int64, name string) error
	UpdateMessageTime(ctx context.Context, userID int64, messageTime string) error
	ReferralStatus(ctx context.Context, userID int64) (*domain.ReferralStatus, error)
	ListAll(ctx context.Context) ([]*domain.Profile, error)
}

// Rescheduler arms the daily delivery timer for a user.
type Rescheduler interface {
	Reschedule(userID int64, messageTime string) error
}

// Registration drives the multi-step registration dialogue and the
// single-field edit dialogues reachable from the menu.
type Registration struct {
	fsm                state.Machine
	profiles           ProfileService
	schedule           Rescheduler
	keyboard           *keyboard.Builder
	botUsername        string
	defaultMessageTime string
	log                *slog.Logger
	now                func() time.Time
}

// NewRegistration builds the registration handler set.
func NewRegistration(
	fsm state.Machine,
	profiles ProfileService,
	schedule Rescheduler,
	kb *keyboard.Builder,
	botUsername string,
	defaultMessageTime string,
	log *slog.Logger,
) *Registration {
	if log == nil {
		log = slog.Default()
	}

	return &Registration{
		fsm:                fsm,
		profiles:           profiles,
		schedule:           schedule,
		keyboard:           kb,
		botUsername:        botUsername,
		defaultMessageTime: defaultMessageTime,
		log:                log,
		now:                time.Now,
	}
}

// Start handles /start. Registered users are greeted, new users enter the
// registration dialogue. A referral code passed as the deep-link payload is
// kept in the session draft until confirmation.
func (h *Registration) Start(c telebot.Context) error {
	if c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	existing, err := h.profiles.Get(ctx, userID)
	if err == nil {
		return c.Send(fmt.Sprintf(textAlreadyRegistered, existing.Name))
	}
	if !errors.Is(err, profile.ErrNotRegistered) {
		return err
	}

	refCode := commandPayload(c)

	if err := h.fsm.Begin(ctx, userID, c.Chat().ID, state.StateName, state.Draft{ReferralCode: refCode}); err != nil {
		return err
	}

	return c.Send(textWelcome)
}

// HandleName captures the user's name and asks for the birth date.
func (h *Registration) HandleName(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		name, err := domain.ParseText(input)
		if err != nil {
			return c.Send(textBadName)
		}

		draft := session.Draft
		draft.Name = name
		if err := h.fsm.Advance(ctx, session.UserID, state.StateBirthDate, draft); err != nil {
			return err
		}

		return c.Send(textAskBirthDate)
	})
}

// HandleBirthDate validates the birth date and asks for the birth time.
func (h *Registration) HandleBirthDate(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		iso, err := domain.ParseBirthDate(input)
		if err != nil {
			return c.Send(textBadBirthDate)
		}

		draft := session.Draft
		draft.BirthDate = iso
		if err := h.fsm.Advance(ctx, session.UserID, state.StateBirthTime, draft); err != nil {
			return err
		}

		return c.Send(textAskBirthTime)
	})
}

// HandleBirthTime validates the birth time and asks for the birth place.
func (h *Registration) HandleBirthTime(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		clock, err := domain.ParseClock(input)
		if err != nil {
			return c.Send(textBadBirthTime)
		}

		draft := session.Draft
		draft.BirthTime = clock
		if err := h.fsm.Advance(ctx, session.UserID, state.StateBirthPlace, draft); err != nil {
			return err
		}

		return c.Send(textAskBirthPlace)
	})
}

// HandleBirthPlace captures the birth place and asks for the delivery time.
func (h *Registration) HandleBirthPlace(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		place, err := domain.ParseText(input)
		if err != nil {
			return c.Send(textBadBirthPlace)
		}

		draft := session.Draft
		draft.BirthPlace = place
		if err := h.fsm.Advance(ctx, session.UserID, state.StateMessageTime, draft); err != nil {
			return err
		}

		return c.Send(textAskMessageTime)
	})
}

// HandleMessageTime validates the delivery time and shows the summary with
// the confirmation button.
func (h *Registration) HandleMessageTime(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		clock, err := domain.ParseClock(input)
		if err != nil {
			return c.Send(textBadMessageTime)
		}

		draft := session.Draft
		draft.MessageTime = clock
		if err := h.fsm.Advance(ctx, session.UserID, state.StateConfirm, draft); err != nil {
			return err
		}

		return c.Send(h.summary(draft), h.keyboard.ConfirmProfile())
	})
}

// HandleConfirmPrompt re-sends the summary when the user types instead of
// pressing the confirmation button.
func (h *Registration) HandleConfirmPrompt(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		return c.Send(h.summary(session.Draft), h.keyboard.ConfirmProfile())
	})
}

// Confirm commits the collected draft: persists the profile, credits the
// referrer, arms the daily timer and sends the first forecast.
func (h *Registration) Confirm(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	session, err := h.fsm.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, state.ErrSessionNotFound) {
			return c.Respond()
		}
		return err
	}
	if session.CurrentState != state.StateConfirm {
		return c.Respond()
	}

	draft := session.Draft
	messageTime := draft.MessageTime
	if messageTime == "" {
		messageTime = h.defaultMessageTime
	}

	registered, created, err := h.profiles.Register(ctx, profile.Registration{
		UserID:       userID,
		ChatID:       session.ChatID,
		Name:         draft.Name,
		BirthDate:    draft.BirthDate,
		BirthTime:    draft.BirthTime,
		BirthPlace:   draft.BirthPlace,
		MessageTime:  messageTime,
		ReferralCode: draft.ReferralCode,
	})
	if err != nil {
		return err
	}
	if created {
		metrics.RecordRegistration()
	}

	if err := h.schedule.Reschedule(userID, registered.MessageTime); err != nil {
		h.log.Error("failed to schedule daily delivery",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}

	if err := h.fsm.ClearSession(ctx, userID); err != nil {
		h.log.Error("failed to clear session after confirm", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	if err := c.Respond(); err != nil {
		h.log.Warn("failed to answer callback", slog.Any("error", err))
	}

	first := forecast.Generate(registered.Name, registered.BirthDate, registered.BirthTime, h.now())
	if err := c.Send(textFirstForecast + first); err != nil {
		return err
	}

	if registered.ReferralCode != "" {
		link := ReferralLink(h.botUsername, registered.ReferralCode)
		return c.Send(fmt.Sprintf(textReferralLink, link))
	}

	return nil
}

// HandleEditName processes the new name entered after the menu button.
func (h *Registration) HandleEditName(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		name, err := domain.ParseText(input)
		if err != nil {
			return c.Send(textBadName)
		}

		if err := h.profiles.UpdateName(ctx, session.UserID, name); err != nil {
			return err
		}

		if err := h.fsm.ClearSession(ctx, session.UserID); err != nil {
			h.log.Error("failed to clear session after edit", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		}

		return c.Send(textNameUpdated)
	})
}

// HandleEditTime processes the new delivery time entered after the menu
// button and re-arms the timer.
func (h *Registration) HandleEditTime(c telebot.Context) error {
	return h.step(c, func(ctx context.Context, session *state.Session, input string) error {
		clock, err := domain.ParseClock(input)
		if err != nil {
			return c.Send(textBadMessageTime)
		}

		if err := h.profiles.UpdateMessageTime(ctx, session.UserID, clock); err != nil {
			return err
		}

		if err := h.schedule.Reschedule(session.UserID, clock); err != nil {
			h.log.Error("failed to reschedule daily delivery",
				slog.Int64("user_id", session.UserID),
				slog.Any("error", err),
			)
		}

		if err := h.fsm.ClearSession(ctx, session.UserID); err != nil {
			h.log.Error("failed to clear session after edit", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		}

		return c.Send(textTimeUpdated)
	})
}

// Cancel aborts any active dialogue.
func (h *Registration) Cancel(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	if _, err := h.fsm.GetSession(ctx, userID); err != nil {
		if errors.Is(err, state.ErrSessionNotFound) {
			return c.Send(textNothingToStop)
		}
		return err
	}

	if err := h.fsm.ClearSession(ctx, userID); err != nil {
		return err
	}

	return c.Send(textCancelled)
}

func (h *Registration) step(c telebot.Context, fn func(ctx context.Context, session *state.Session, input string) error) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()

	session, err := h.fsm.GetSession(ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, state.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	return fn(ctx, session, c.Text())
}

func (h *Registration) summary(draft state.Draft) string {
	messageTime := draft.MessageTime
	if messageTime == "" {
		messageTime = h.defaultMessageTime
	}

	return fmt.Sprintf(textRegistrationSum,
		draft.Name,
		domain.FormatBirthDate(draft.BirthDate),
		draft.BirthPlace,
		draft.BirthTime,
		messageTime,
	)
}

// ReferralLink builds the t.me deep link carrying a referral code.
func ReferralLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}

// commandPayload extracts the argument after a command. Updates arriving
// through the generic text route do not have Message.Payload populated, the
// raw text is the fallback.
func commandPayload(c telebot.Context) string {
	if msg := c.Message(); msg != nil && msg.Payload != "" {
		return msg.Payload
	}

	text := c.Text()
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		return strings.TrimSpace(text[idx+1:])
	}

	return ""
}
