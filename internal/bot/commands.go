package bot

// Command constants for Telegram bot commands.
const (
	CommandStart     = "/start"
	CommandMenu      = "/menu"
	CommandCancel    = "/cancel"
	CommandBroadcast = "/broadcast"
)

// Callback data constants for inline button interactions.
const (
	CallbackConfirmProfile  = "confirm_profile"
	CallbackEditData        = "edit_data"
	CallbackEditTime        = "edit_time"
	CallbackRefStatus       = "ref_status"
	CallbackBuySubscription = "buy_subscription"
)
