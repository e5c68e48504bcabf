// Package rules implements the trade legality engine: a registry of
// independent validators run in priority order against a deal and a read-only
// snapshot of league state.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
)

// Context is the read-only snapshot a single validation pass runs against.
// Building it performs no mutation; rules themselves are pure over it.
type Context struct {
	Consts league.Constants
	Today  time.Time

	// AllowLockedByDealID lets re-verification of a committed deal pass its
	// own locks.
	AllowLockedByDealID string

	// Players holds the referenced players found on a roster, by player id.
	// A referenced player missing here was not found anywhere in the league.
	Players map[string]*league.PlayerRecord

	// Picks holds every draft pick in the league, by pick id. The Stepien
	// check needs the full set, not just the referenced picks.
	Picks map[string]league.PickRecord

	// Swaps and Fixed hold the referenced swap rights and fixed assets that
	// exist.
	Swaps map[string]league.SwapRecord
	Fixed map[string]league.FixedAssetRecord

	// Locks is the current asset-lock table.
	Locks map[string]model.AssetLock

	// Payrolls and RosterCounts cover the deal's teams, pre-trade.
	Payrolls     map[string]decimal.Decimal
	RosterCounts map[string]int
}

// BuildOptions tune a context build.
type BuildOptions struct {
	// Today overrides the evaluation date for deterministic or backdated
	// validation. Zero means time.Now().UTC().
	Today time.Time

	// AllowLockedByDealID is the own-lock escape hatch used at verify time.
	AllowLockedByDealID string
}

// BuildContext assembles the snapshot for one validation pass over deal.
// Lookups that miss are recorded as absent (the ownership rule turns absence
// into a typed violation); infrastructure failures abort the build.
func BuildContext(ctx context.Context, store league.Store, consts league.Constants, deal *model.Deal, opts BuildOptions) (*Context, error) {
	today := opts.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}

	rc := &Context{
		Consts:              consts,
		Today:               today,
		AllowLockedByDealID: opts.AllowLockedByDealID,
		Players:             make(map[string]*league.PlayerRecord),
		Picks:               make(map[string]league.PickRecord),
		Swaps:               make(map[string]league.SwapRecord),
		Fixed:               make(map[string]league.FixedAssetRecord),
		Payrolls:            make(map[string]decimal.Decimal),
		RosterCounts:        make(map[string]int),
	}

	for _, assets := range deal.Legs {
		for _, a := range assets {
			switch a.Kind {
			case model.AssetPlayer:
				p, err := store.GetPlayer(ctx, a.PlayerID)
				if errors.Is(err, league.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("load player %s: %w", a.PlayerID, err)
				}
				rc.Players[a.PlayerID] = p
			case model.AssetSwap:
				sw, err := store.GetSwap(ctx, a.SwapID)
				if errors.Is(err, league.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("load swap %s: %w", a.SwapID, err)
				}
				rc.Swaps[a.SwapID] = *sw
			case model.AssetFixed:
				f, err := store.GetFixedAsset(ctx, a.AssetID)
				if errors.Is(err, league.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("load fixed asset %s: %w", a.AssetID, err)
				}
				rc.Fixed[a.AssetID] = *f
			}
		}
	}

	picks, err := store.ListPicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load picks: %w", err)
	}
	for _, p := range picks {
		rc.Picks[p.PickID] = p
	}

	locks, err := store.ListLocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load asset locks: %w", err)
	}
	rc.Locks = locks

	for _, team := range deal.Teams {
		payroll, err := store.TeamPayroll(ctx, team)
		if err != nil {
			return nil, fmt.Errorf("load payroll for %s: %w", team, err)
		}
		rc.Payrolls[team] = payroll

		count, err := store.RosterCount(ctx, team)
		if err != nil {
			return nil, fmt.Errorf("load roster count for %s: %w", team, err)
		}
		rc.RosterCounts[team] = count
	}

	return rc, nil
}
