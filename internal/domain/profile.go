package domain

import "time"

// Profile represents a registered bot user stored in the database.
type Profile struct {
	UserID             int64
	ChatID             int64
	Name               string
	BirthDate          string // ISO date (YYYY-MM-DD), normalized at input time
	BirthTime          string // HH:MM as entered, no timezone attached
	BirthPlace         string
	MessageTime        string // HH:MM, when the daily forecast fires
	RegisteredAt       time.Time
	ReferralCode       string
	ReferredByCode     string // empty when the user signed up without a link
	Points             int64
	IsSubscribed       bool
	SubscriptionExpiry *time.Time
}

// ActiveSubscription reports whether the profile has a paid subscription
// that has not expired yet. Activeness is always derived, never stored.
func (p *Profile) ActiveSubscription(now time.Time) bool {
	if p == nil || !p.IsSubscribed || p.SubscriptionExpiry == nil {
		return false
	}
	return p.SubscriptionExpiry.After(now)
}

// ReferralEdge is one append-only record of a successful referred signup.
type ReferralEdge struct {
	ID             int64
	ReferrerCode   string
	ReferredUserID int64
	CreatedAt      time.Time
}

// PaymentRecord is one payment event keyed by the provider-assigned id.
// Replays of the same id overwrite the row instead of duplicating it.
type PaymentRecord struct {
	PaymentID string
	UserID    int64
	Amount    int64 // smallest currency unit
	Currency  string
	Status    string
	CreatedAt time.Time
}

// ReferralStatus aggregates the referral standing of one user.
type ReferralStatus struct {
	ReferredCount int64
	Points        int64
}
