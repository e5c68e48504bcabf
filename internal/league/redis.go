package league

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache on the hot lookups: players and picks. Writes go to the primary and
// then invalidate the cache. Cache failures never fail the request; they are
// reported through the logger so a broken cache is visible rather than
// silent.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	log     *slog.Logger
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedStore {
	if log == nil {
		log = slog.Default()
	}
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl, log: log}
}

func playerKey(id string) string { return fmt.Sprintf("player:%s", id) }
func pickKey(id string) string   { return fmt.Sprintf("pick:%s", id) }

func (s *CachedStore) reportCacheErr(op, key string, err error) {
	if err != nil {
		s.log.Warn("league cache operation failed", "op", op, "key", key, "err", err)
	}
}

// --- Read-through ---

func (s *CachedStore) GetPlayer(ctx context.Context, playerID string) (*PlayerRecord, error) {
	data, err := s.rdb.Get(ctx, playerKey(playerID)).Bytes()
	if err == nil {
		var p PlayerRecord
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.reportCacheErr("set", playerKey(playerID), s.rdb.Set(ctx, playerKey(playerID), data, s.ttl).Err())
	}
	return p, nil
}

func (s *CachedStore) GetPick(ctx context.Context, pickID string) (*PickRecord, error) {
	data, err := s.rdb.Get(ctx, pickKey(pickID)).Bytes()
	if err == nil {
		var p PickRecord
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPick(ctx, pickID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.reportCacheErr("set", pickKey(pickID), s.rdb.Set(ctx, pickKey(pickID), data, s.ttl).Err())
	}
	return p, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpdatePlayer(ctx context.Context, p *PlayerRecord) error {
	if err := s.primary.UpdatePlayer(ctx, p); err != nil {
		return err
	}
	s.reportCacheErr("del", playerKey(p.PlayerID), s.rdb.Del(ctx, playerKey(p.PlayerID)).Err())
	return nil
}

func (s *CachedStore) UpdatePickOwner(ctx context.Context, pickID, ownerTeam string) error {
	if err := s.primary.UpdatePickOwner(ctx, pickID, ownerTeam); err != nil {
		return err
	}
	s.reportCacheErr("del", pickKey(pickID), s.rdb.Del(ctx, pickKey(pickID)).Err())
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) RosterCount(ctx context.Context, teamID string) (int, error) {
	return s.primary.RosterCount(ctx, teamID)
}

func (s *CachedStore) TeamPayroll(ctx context.Context, teamID string) (decimal.Decimal, error) {
	return s.primary.TeamPayroll(ctx, teamID)
}

func (s *CachedStore) ListPicks(ctx context.Context) ([]PickRecord, error) {
	return s.primary.ListPicks(ctx)
}

func (s *CachedStore) GetSwap(ctx context.Context, swapID string) (*SwapRecord, error) {
	return s.primary.GetSwap(ctx, swapID)
}

func (s *CachedStore) PutSwap(ctx context.Context, sw *SwapRecord) error {
	return s.primary.PutSwap(ctx, sw)
}

func (s *CachedStore) UpdateSwapOwner(ctx context.Context, swapID, ownerTeam string) error {
	return s.primary.UpdateSwapOwner(ctx, swapID, ownerTeam)
}

func (s *CachedStore) DeleteSwap(ctx context.Context, swapID string) error {
	return s.primary.DeleteSwap(ctx, swapID)
}

func (s *CachedStore) GetFixedAsset(ctx context.Context, assetID string) (*FixedAssetRecord, error) {
	return s.primary.GetFixedAsset(ctx, assetID)
}

func (s *CachedStore) UpdateFixedAssetOwner(ctx context.Context, assetID, ownerTeam string) error {
	return s.primary.UpdateFixedAssetOwner(ctx, assetID, ownerTeam)
}

func (s *CachedStore) PutAgreement(ctx context.Context, a *model.Agreement) error {
	return s.primary.PutAgreement(ctx, a)
}

func (s *CachedStore) GetAgreement(ctx context.Context, dealID string) (*model.Agreement, error) {
	return s.primary.GetAgreement(ctx, dealID)
}

func (s *CachedStore) ListAgreements(ctx context.Context) ([]model.Agreement, error) {
	return s.primary.ListAgreements(ctx)
}

func (s *CachedStore) SetAgreementStatus(ctx context.Context, dealID string, status model.AgreementStatus) error {
	return s.primary.SetAgreementStatus(ctx, dealID, status)
}

func (s *CachedStore) GetLock(ctx context.Context, assetKey string) (*model.AssetLock, error) {
	return s.primary.GetLock(ctx, assetKey)
}

func (s *CachedStore) PutLock(ctx context.Context, assetKey string, lock model.AssetLock) error {
	return s.primary.PutLock(ctx, assetKey, lock)
}

func (s *CachedStore) ReleaseLock(ctx context.Context, assetKey string) error {
	return s.primary.ReleaseLock(ctx, assetKey)
}

func (s *CachedStore) ReleaseLocksForDeal(ctx context.Context, dealID string) error {
	return s.primary.ReleaseLocksForDeal(ctx, dealID)
}

func (s *CachedStore) ListLocks(ctx context.Context) (map[string]model.AssetLock, error) {
	return s.primary.ListLocks(ctx)
}

func (s *CachedStore) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.primary.AppendTransaction(ctx, tx)
}

func (s *CachedStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx)
}

func (s *CachedStore) PutSession(ctx context.Context, sess *model.Session) error {
	return s.primary.PutSession(ctx, sess)
}

func (s *CachedStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.primary.GetSession(ctx, sessionID)
}
