// Package apply executes a verified deal against league state: players change
// team-of-record, picks, swap rights, and fixed assets change owner, and one
// immutable transaction-log entry records the exchange. Every original value
// is captured before any mutation and restored on failure, so callers see
// all-or-nothing behavior without a storage transaction.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
)

// Engine mutates roster and asset ownership for executed trades.
type Engine struct {
	store  league.Store
	consts league.Constants
	log    *slog.Logger
	now    func() time.Time
}

// NewEngine wires the apply engine over a store.
func NewEngine(store league.Store, consts league.Constants, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:  store,
		consts: consts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock, for deterministic dates in tests.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// captured holds every pre-mutation original, keyed by natural id. Minted
// swap rights did not exist before the trade and are deleted on rollback.
type captured struct {
	players     map[string]*league.PlayerRecord
	pickOwners  map[string]string
	swapOwners  map[string]string
	mintedSwaps []string
	fixedOwners map[string]string
}

func newCaptured() *captured {
	return &captured{
		players:     make(map[string]*league.PlayerRecord),
		pickOwners:  make(map[string]string),
		swapOwners:  make(map[string]string),
		fixedOwners: make(map[string]string),
	}
}

// Apply moves every asset in the deal to its receiving team and appends one
// transaction-log entry. On any failure all captured originals are restored
// before the error surfaces as APPLY_FAILED with the cause attached.
func (e *Engine) Apply(ctx context.Context, deal *model.Deal, source, dealID string) (*model.Transaction, error) {
	today := e.now()
	tradeDate := today.Format(model.DateLayout)
	seasonKey := e.seasonKey(today)

	orig := newCaptured()
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			receiver, err := model.ResolveReceiver(deal, team, a)
			if err != nil {
				return nil, e.failAndRollback(ctx, orig, dealID, err)
			}
			switch a.Kind {
			case model.AssetPlayer:
				err = e.movePlayer(ctx, orig, a.PlayerID, team, receiver, tradeDate, seasonKey)
			case model.AssetPick:
				err = e.movePick(ctx, orig, a.PickID, team, receiver)
			case model.AssetSwap:
				err = e.moveSwap(ctx, orig, a, receiver)
			default:
				err = e.moveFixed(ctx, orig, a.AssetID, receiver)
			}
			if err != nil {
				return nil, e.failAndRollback(ctx, orig, dealID, err)
			}
		}
	}

	tx := buildTransaction(deal, source, dealID, tradeDate, today)
	if err := e.store.AppendTransaction(ctx, tx); err != nil {
		return nil, e.failAndRollback(ctx, orig, dealID, fmt.Errorf("append transaction: %w", err))
	}
	return tx, nil
}

func (e *Engine) seasonKey(today time.Time) string {
	year := e.consts.SeasonYear
	if year <= 0 {
		year = today.Year()
	}
	return strconv.Itoa(year)
}

func (e *Engine) movePlayer(ctx context.Context, orig *captured, playerID, fromTeam, toTeam, tradeDate, seasonKey string) error {
	p, err := e.store.GetPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("load player %s: %w", playerID, err)
	}
	if _, ok := orig.players[playerID]; !ok {
		orig.players[playerID] = p.Clone()
	}

	p.TeamID = toTeam
	if p.SignedDate == "" {
		p.SignedDate = "1900-01-01"
	}
	p.AcquiredDate = tradeDate
	p.AcquiredViaTrade = true
	if p.TradeReturnBans == nil {
		p.TradeReturnBans = make(map[string][]string)
	}
	bans := p.TradeReturnBans[seasonKey]
	found := false
	for _, t := range bans {
		if t == fromTeam {
			found = true
			break
		}
	}
	if !found {
		p.TradeReturnBans[seasonKey] = append(bans, fromTeam)
	}

	if err := e.store.UpdatePlayer(ctx, p); err != nil {
		return fmt.Errorf("update player %s: %w", playerID, err)
	}
	return nil
}

func (e *Engine) movePick(ctx context.Context, orig *captured, pickID, fromTeam, toTeam string) error {
	pick, err := e.store.GetPick(ctx, pickID)
	if err != nil {
		return fmt.Errorf("load pick %s: %w", pickID, err)
	}
	if pick.OwnerTeam != fromTeam {
		return model.NewTradeError(model.CodePickNotOwned, "pick not owned by team",
			map[string]any{"pick_id": pickID, "team_id": fromTeam, "owner_team": pick.OwnerTeam})
	}
	if _, ok := orig.pickOwners[pickID]; !ok {
		orig.pickOwners[pickID] = pick.OwnerTeam
	}
	if err := e.store.UpdatePickOwner(ctx, pickID, toTeam); err != nil {
		return fmt.Errorf("update pick %s: %w", pickID, err)
	}
	return nil
}

func (e *Engine) moveSwap(ctx context.Context, orig *captured, a model.Asset, toTeam string) error {
	sw, err := e.store.GetSwap(ctx, a.SwapID)
	if errors.Is(err, league.ErrNotFound) {
		// The sender is minting a new right over its own pick; validation has
		// already confirmed that.
		minted := &league.SwapRecord{
			SwapID:    a.SwapID,
			PickIDA:   a.PickIDA,
			PickIDB:   a.PickIDB,
			OwnerTeam: toTeam,
			Active:    true,
		}
		if err := e.store.PutSwap(ctx, minted); err != nil {
			return fmt.Errorf("mint swap %s: %w", a.SwapID, err)
		}
		orig.mintedSwaps = append(orig.mintedSwaps, a.SwapID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load swap %s: %w", a.SwapID, err)
	}
	if _, ok := orig.swapOwners[a.SwapID]; !ok {
		orig.swapOwners[a.SwapID] = sw.OwnerTeam
	}
	if err := e.store.UpdateSwapOwner(ctx, a.SwapID, toTeam); err != nil {
		return fmt.Errorf("update swap %s: %w", a.SwapID, err)
	}
	return nil
}

func (e *Engine) moveFixed(ctx context.Context, orig *captured, assetID, toTeam string) error {
	f, err := e.store.GetFixedAsset(ctx, assetID)
	if err != nil {
		return fmt.Errorf("load fixed asset %s: %w", assetID, err)
	}
	if _, ok := orig.fixedOwners[assetID]; !ok {
		orig.fixedOwners[assetID] = f.OwnerTeam
	}
	if err := e.store.UpdateFixedAssetOwner(ctx, assetID, toTeam); err != nil {
		return fmt.Errorf("update fixed asset %s: %w", assetID, err)
	}
	return nil
}

func (e *Engine) failAndRollback(ctx context.Context, orig *captured, dealID string, cause error) error {
	e.rollback(ctx, orig)
	return model.WrapTradeError(model.CodeApplyFailed, "failed to apply trade",
		map[string]any{"deal_id": dealID, "error": cause.Error()}, cause)
}

// rollback restores every captured original. Failures here are logged and
// skipped so the remaining state is still restored.
func (e *Engine) rollback(ctx context.Context, orig *captured) {
	for id, p := range orig.players {
		if err := e.store.UpdatePlayer(ctx, p); err != nil {
			e.log.Warn("rollback: restore player failed", "player_id", id, "err", err)
		}
	}
	for id, owner := range orig.pickOwners {
		if err := e.store.UpdatePickOwner(ctx, id, owner); err != nil {
			e.log.Warn("rollback: restore pick owner failed", "pick_id", id, "err", err)
		}
	}
	for id, owner := range orig.swapOwners {
		if err := e.store.UpdateSwapOwner(ctx, id, owner); err != nil {
			e.log.Warn("rollback: restore swap owner failed", "swap_id", id, "err", err)
		}
	}
	for _, id := range orig.mintedSwaps {
		if err := e.store.DeleteSwap(ctx, id); err != nil {
			e.log.Warn("rollback: delete minted swap failed", "swap_id", id, "err", err)
		}
	}
	for id, owner := range orig.fixedOwners {
		if err := e.store.UpdateFixedAssetOwner(ctx, id, owner); err != nil {
			e.log.Warn("rollback: restore fixed asset owner failed", "asset_id", id, "err", err)
		}
	}
}

func buildTransaction(deal *model.Deal, source, dealID, tradeDate string, now time.Time) *model.Transaction {
	assets := make(map[string]model.TeamAssetSummary, len(deal.Teams))
	for _, team := range deal.Teams {
		var summary model.TeamAssetSummary
		for _, a := range deal.Legs[team] {
			switch a.Kind {
			case model.AssetPlayer:
				summary.Players = append(summary.Players, a.PlayerID)
			case model.AssetPick:
				summary.Picks = append(summary.Picks, a.PickID)
			case model.AssetSwap:
				summary.Swaps = append(summary.Swaps, a.SwapID)
			default:
				summary.Fixed = append(summary.Fixed, a.AssetID)
			}
		}
		assets[team] = summary
	}
	return &model.Transaction{
		ID:        uuid.NewString(),
		DealID:    dealID,
		Source:    source,
		Date:      tradeDate,
		Assets:    assets,
		CreatedAt: now,
	}
}
