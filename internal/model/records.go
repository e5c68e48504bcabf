package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date form used for agreement expiry, lock
// expiry, and transaction dates.
const DateLayout = "2006-01-02"

// AgreementStatus is the committed-deal lifecycle state.
type AgreementStatus string

const (
	StatusActive      AgreementStatus = "ACTIVE"
	StatusExecuted    AgreementStatus = "EXECUTED"
	StatusExpired     AgreementStatus = "EXPIRED"
	StatusInvalidated AgreementStatus = "INVALIDATED"
)

// Terminal reports whether the status permits no further transition.
func (s AgreementStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusExpired || s == StatusInvalidated
}

// Agreement is a committed deal record. Deal holds the canonical serialized
// form; AssetsHash is the content hash over {deal, ownership snapshot} used
// as the optimistic-concurrency gate at verify time.
type Agreement struct {
	DealID     string          `json:"deal_id" db:"deal_id"`
	Deal       json.RawMessage `json:"deal" db:"deal"`
	AssetsHash string          `json:"assets_hash" db:"assets_hash"`
	CreatedAt  string          `json:"created_at" db:"created_at"`   // ISO calendar date
	ExpiresAt  string          `json:"expires_at" db:"expires_at"`   // ISO calendar date
	Status     AgreementStatus `json:"status" db:"status"`
}

// AssetLock reserves an asset for exactly one active committed deal. Keyed by
// the asset's natural key.
type AssetLock struct {
	DealID    string `json:"deal_id" db:"deal_id"`
	ExpiresAt string `json:"expires_at" db:"expires_at"` // ISO calendar date
}

// Expired reports whether the lock's expiry date has passed relative to today.
func (l AssetLock) Expired(today time.Time) bool {
	return PastDate(today, l.ExpiresAt)
}

// PastDate reports whether today's calendar date is strictly after an ISO
// date. The comparison is day-granular: any time of day ON the date itself is
// not past it. Empty or unparsable dates are never past.
func PastDate(today time.Time, date string) bool {
	if date == "" {
		return false
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return false
	}
	return today.Format(DateLayout) > date
}

// TeamAssetSummary lists what one team sent in an executed trade.
type TeamAssetSummary struct {
	Players []string `json:"players,omitempty"`
	Picks   []string `json:"picks,omitempty"`
	Swaps   []string `json:"swaps,omitempty"`
	Fixed   []string `json:"fixed,omitempty"`
}

// Transaction is an immutable log entry appended once per executed trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID        string                      `json:"id" db:"id"`
	DealID    string                      `json:"deal_id,omitempty" db:"deal_id"`
	Source    string                      `json:"source" db:"source"`
	Date      string                      `json:"date" db:"date"` // ISO calendar date
	Assets    map[string]TeamAssetSummary `json:"assets" db:"assets"`
	CreatedAt time.Time                   `json:"created_at" db:"created_at"`
}

// SessionMessage is one transcript entry in a negotiation session.
type SessionMessage struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Session is a short-lived negotiation between two teams. The draft deal is
// staged here without rule validation until it is promoted to a committed
// deal.
type Session struct {
	SessionID       string           `json:"session_id"`
	UserTeamID      string           `json:"user_team_id"`
	OtherTeamID     string           `json:"other_team_id"`
	Messages        []SessionMessage `json:"messages"`
	Status          string           `json:"status"`
	Phase           string           `json:"phase"`
	Constraints     map[string]any   `json:"constraints,omitempty"`
	DraftDeal       json.RawMessage  `json:"draft_deal,omitempty"`
	CommittedDealID string           `json:"committed_deal_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
