package handlers

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// TextSender delivers a plain text message to a chat.
type TextSender interface {
	SendText(chatID int64, text string) error
}

// Broadcast implements the admin-only /broadcast command.
type Broadcast struct {
	profiles ProfileService
	sender   TextSender
	isAdmin  func(userID int64) bool
	log      *slog.Logger
}

// NewBroadcast builds the broadcast handler.
func NewBroadcast(profiles ProfileService, sender TextSender, isAdmin func(userID int64) bool, log *slog.Logger) *Broadcast {
	if log == nil {
		log = slog.Default()
	}

	return &Broadcast{
		profiles: profiles,
		sender:   sender,
		isAdmin:  isAdmin,
		log:      log,
	}
}

// Handle sends the message text to every registered user. Per-user send
// failures are logged and skipped, the reply reports how many went through.
func (h *Broadcast) Handle(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}

	if !h.isAdmin(c.Sender().ID) {
		return c.Send(textNoBroadcastRights)
	}

	text := commandPayload(c)
	if text == "" {
		return c.Send(textBroadcastUsage)
	}

	profiles, err := h.profiles.ListAll(context.Background())
	if err != nil {
		return err
	}

	sent := 0
	for _, p := range profiles {
		if err := h.sender.SendText(p.ChatID, text); err != nil {
			h.log.Error("broadcast send failed",
				slog.Int64("user_id", p.UserID),
				slog.Int64("chat_id", p.ChatID),
				slog.Any("error", err),
			)
			continue
		}
		sent++
	}

	return c.Send(fmt.Sprintf(textBroadcastDone, sent))
}
