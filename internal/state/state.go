package state

import "time"

// State represents a step of the per-user conversation state machine.
type State string

const (
	// StateNone is the implicit state of a user without an active session.
	StateNone State = ""
	// StateName indicates the bot is waiting for the user's name.
	StateName State = "reg_name"
	// StateBirthDate indicates the bot is waiting for the birth date.
	StateBirthDate State = "reg_birth_date"
	// StateBirthTime indicates the bot is waiting for the birth time.
	StateBirthTime State = "reg_birth_time"
	// StateBirthPlace indicates the bot is waiting for the birth place.
	StateBirthPlace State = "reg_birth_place"
	// StateMessageTime indicates the bot is waiting for the daily message time.
	StateMessageTime State = "reg_message_time"
	// StateConfirm indicates the summary was shown and only the explicit
	// confirmation button advances the dialogue.
	StateConfirm State = "reg_confirm"
	// StateEditName indicates a registered user is entering a new name.
	StateEditName State = "edit_name"
	// StateEditTime indicates a registered user is entering a new message time.
	StateEditTime State = "edit_message_time"
)

// Draft accumulates registration fields before they are committed. It lives
// only inside the session and is discarded on completion or abandonment.
type Draft struct {
	Name         string `json:"name,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"` // ISO form
	BirthTime    string `json:"birth_time,omitempty"`
	BirthPlace   string `json:"birth_place,omitempty"`
	MessageTime  string `json:"message_time,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"` // captured at /start, persisted only on confirm
}

// Session captures the current conversation state for a Telegram user.
type Session struct {
	UserID       int64     `json:"user_id"`
	ChatID       int64     `json:"chat_id"`
	CurrentState State     `json:"current_state"`
	Draft        Draft     `json:"draft"`
	UpdatedAt    time.Time `json:"updated_at"`
}
