// Package league defines the persistence contract between the trade core and
// the surrounding league state: rosters, draft picks, swap rights, fixed
// assets, committed agreements, asset locks, the transaction log, and
// negotiation sessions. Implementations include PostgreSQL (source of truth),
// Redis (read-through cache), and in-memory (for testing).
package league

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/model"
)

// ErrNotFound is returned for lookups of players, picks, swaps, fixed assets,
// agreements, locks, or sessions that do not exist.
var ErrNotFound = errors.New("league: not found")

// PlayerRecord is a team's contractual hold on one player. Date fields are
// date-or-datetime strings; consumers parse the first 10 characters and fall
// back to a far-past sentinel when unparsable.
type PlayerRecord struct {
	PlayerID            string              `json:"player_id" db:"player_id"`
	TeamID              string              `json:"team_id" db:"team_id"`
	Salary              decimal.Decimal     `json:"salary" db:"salary"`
	SignedDate          string              `json:"signed_date,omitempty" db:"signed_date"`
	SignedViaFreeAgency bool                `json:"signed_via_free_agency" db:"signed_via_free_agency"`
	LastActionType      string              `json:"last_action_type,omitempty" db:"last_action_type"`
	LastActionDate      string              `json:"last_action_date,omitempty" db:"last_action_date"`
	AcquiredDate        string              `json:"acquired_date,omitempty" db:"acquired_date"`
	AcquiredViaTrade    bool                `json:"acquired_via_trade" db:"acquired_via_trade"`
	TradeReturnBans     map[string][]string `json:"trade_return_bans,omitempty" db:"trade_return_bans"`
}

// Clone returns a deep copy, so callers can capture a pre-mutation snapshot.
func (p *PlayerRecord) Clone() *PlayerRecord {
	cp := *p
	if p.TradeReturnBans != nil {
		cp.TradeReturnBans = make(map[string][]string, len(p.TradeReturnBans))
		for k, v := range p.TradeReturnBans {
			cp.TradeReturnBans[k] = append([]string(nil), v...)
		}
	}
	return &cp
}

// PickRecord is a draft pick. PickID stays stable while OwnerTeam changes
// hands through trades.
type PickRecord struct {
	PickID        string `json:"pick_id" db:"pick_id"`
	Year          int    `json:"year" db:"year"`
	Round         int    `json:"round" db:"round"`
	OriginalOwner string `json:"original_owner" db:"original_owner"`
	OwnerTeam     string `json:"owner_team" db:"owner_team"`
}

// SwapRecord is a pick-swap right over a pair of picks.
type SwapRecord struct {
	SwapID    string `json:"swap_id" db:"swap_id"`
	PickIDA   string `json:"pick_id_a" db:"pick_id_a"`
	PickIDB   string `json:"pick_id_b" db:"pick_id_b"`
	OwnerTeam string `json:"owner_team" db:"owner_team"`
	Active    bool   `json:"active" db:"active"`
}

// FixedAssetRecord is a miscellaneous tradeable asset (cash considerations,
// trade exceptions, and the like).
type FixedAssetRecord struct {
	AssetID   string `json:"asset_id" db:"asset_id"`
	OwnerTeam string `json:"owner_team" db:"owner_team"`
	Label     string `json:"label,omitempty" db:"label"`
}

// Store is the persistence interface consumed by the trade core. PostgreSQL
// is the source of truth; Redis provides a read-through cache layer. Each
// call completes or fails atomically from the caller's point of view, but no
// multi-statement transactional isolation is assumed — the apply engine
// captures originals and rolls back explicitly.
type Store interface {
	// --- Rosters ---

	// GetPlayer retrieves a player's roster record.
	GetPlayer(ctx context.Context, playerID string) (*PlayerRecord, error)

	// UpdatePlayer writes back a full player record.
	UpdatePlayer(ctx context.Context, p *PlayerRecord) error

	// RosterCount returns the number of players on a team.
	RosterCount(ctx context.Context, teamID string) (int, error)

	// TeamPayroll returns the sum of salaries for a team's roster.
	TeamPayroll(ctx context.Context, teamID string) (decimal.Decimal, error)

	// --- Picks, swap rights, fixed assets ---

	GetPick(ctx context.Context, pickID string) (*PickRecord, error)
	ListPicks(ctx context.Context) ([]PickRecord, error)
	UpdatePickOwner(ctx context.Context, pickID, ownerTeam string) error

	GetSwap(ctx context.Context, swapID string) (*SwapRecord, error)
	PutSwap(ctx context.Context, sw *SwapRecord) error
	UpdateSwapOwner(ctx context.Context, swapID, ownerTeam string) error
	DeleteSwap(ctx context.Context, swapID string) error

	GetFixedAsset(ctx context.Context, assetID string) (*FixedAssetRecord, error)
	UpdateFixedAssetOwner(ctx context.Context, assetID, ownerTeam string) error

	// --- Committed agreements ---

	PutAgreement(ctx context.Context, a *model.Agreement) error
	GetAgreement(ctx context.Context, dealID string) (*model.Agreement, error)
	ListAgreements(ctx context.Context) ([]model.Agreement, error)
	SetAgreementStatus(ctx context.Context, dealID string, status model.AgreementStatus) error

	// --- Asset locks ---

	GetLock(ctx context.Context, assetKey string) (*model.AssetLock, error)
	PutLock(ctx context.Context, assetKey string, lock model.AssetLock) error
	ReleaseLock(ctx context.Context, assetKey string) error
	ReleaseLocksForDeal(ctx context.Context, dealID string) error
	ListLocks(ctx context.Context) (map[string]model.AssetLock, error)

	// --- Immutable transaction log ---

	AppendTransaction(ctx context.Context, tx *model.Transaction) error
	ListTransactions(ctx context.Context) ([]model.Transaction, error)

	// --- Negotiation sessions ---

	PutSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
}
