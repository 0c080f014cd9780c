// Package keyboard builds the inline keyboards shown during registration
// and in the main menu.
package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// Builder creates inline keyboards for bot replies.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{log: log}
}

// ConfirmProfile builds the single confirmation button shown under the
// registration summary.
func (b *Builder) ConfirmProfile() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{
				Text: "Поговорить со Вселенной 🌌",
				Data: "confirm_profile",
			},
		},
	}
	return markup
}

// MainMenu builds the /menu keyboard.
func (b *Builder) MainMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{
				Text: "Изменить данные ✏️",
				Data: "edit_data",
			},
		},
		{
			{
				Text: "Изменить время ⏰",
				Data: "edit_time",
			},
		},
		{
			{
				Text: "Статус рефералов 👥",
				Data: "ref_status",
			},
		},
		{
			{
				Text: "Купить подписку 💫",
				Data: "buy_subscription",
			},
		},
	}
	return markup
}
