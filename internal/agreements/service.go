// Package agreements implements the committed-deal lifecycle: commit with
// content hashing and asset locks, the verify-time optimistic-concurrency
// gate, executed/expired transitions, and the expiry sweep.
package agreements

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
	"github.com/courtside/trade-engine/internal/rules"
)

// DefaultValidityDays is the agreement lifetime used when a commit request
// does not specify one.
const DefaultValidityDays = 2

// Service owns TradeAgreement and AssetLock records. All state lives in the
// store; the service itself is stateless and safe for concurrent use.
type Service struct {
	store    league.Store
	registry *rules.Registry
	consts   league.Constants
	now      func() time.Time
}

// NewService wires the agreement lifecycle over a store and rule registry.
func NewService(store league.Store, registry *rules.Registry, consts league.Constants) *Service {
	return &Service{
		store:    store,
		registry: registry,
		consts:   consts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock, for deterministic expiry in tests.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// Commit canonicalizes and validates the deal, then persists an ACTIVE
// agreement carrying the content hash of the deal plus the current ownership
// of every referenced asset, and places one lock per asset pointing at the
// new deal id. A failure at any step leaves no agreement and no locks behind.
func (s *Service) Commit(ctx context.Context, deal *model.Deal, validityDays int) (*model.Agreement, error) {
	if validityDays <= 0 {
		validityDays = DefaultValidityDays
	}
	canonical := model.CanonicalizeDeal(deal)
	today := s.now()

	rc, err := rules.BuildContext(ctx, s.store, s.consts, canonical, rules.BuildOptions{Today: today})
	if err != nil {
		return nil, err
	}
	if err := s.registry.ValidateAll(canonical, rc); err != nil {
		return nil, err
	}

	serialized, err := model.SerializeDeal(canonical)
	if err != nil {
		return nil, fmt.Errorf("serialize deal: %w", err)
	}
	hash, err := s.computeAssetsHash(ctx, canonical, serialized)
	if err != nil {
		return nil, err
	}

	agreement := &model.Agreement{
		DealID:     uuid.NewString(),
		Deal:       serialized,
		AssetsHash: hash,
		CreatedAt:  today.Format(model.DateLayout),
		ExpiresAt:  today.AddDate(0, 0, validityDays).Format(model.DateLayout),
		Status:     model.StatusActive,
	}

	lock := model.AssetLock{DealID: agreement.DealID, ExpiresAt: agreement.ExpiresAt}
	for _, team := range canonical.Teams {
		for _, a := range canonical.Legs[team] {
			if err := s.store.PutLock(ctx, a.Key(), lock); err != nil {
				s.releaseLocks(ctx, agreement.DealID)
				return nil, fmt.Errorf("lock asset %s: %w", a.Key(), err)
			}
		}
	}
	if err := s.store.PutAgreement(ctx, agreement); err != nil {
		s.releaseLocks(ctx, agreement.DealID)
		return nil, fmt.Errorf("store agreement: %w", err)
	}
	return agreement, nil
}

// Verify is the optimistic-concurrency gate between commit and apply. It
// re-checks expiry, re-hashes current asset ownership against the committed
// hash, and confirms every lock still points at this deal. Any drift moves
// the agreement to a terminal state before the error is reported, so a failed
// verification can never be retried against stale state. On success it
// returns the canonical deal for execution.
func (s *Service) Verify(ctx context.Context, dealID string) (*model.Deal, error) {
	entry, err := s.store.GetAgreement(ctx, dealID)
	if errors.Is(err, league.ErrNotFound) {
		return nil, model.NewTradeError(model.CodeDealInvalidated, "committed deal not found",
			map[string]any{"deal_id": dealID})
	}
	if err != nil {
		return nil, fmt.Errorf("load agreement %s: %w", dealID, err)
	}

	if entry.Status != model.StatusActive {
		switch entry.Status {
		case model.StatusExecuted:
			return nil, model.NewTradeError(model.CodeDealAlreadyExecuted, "deal already executed",
				map[string]any{"deal_id": dealID})
		case model.StatusExpired:
			return nil, model.NewTradeError(model.CodeDealExpired, "deal expired",
				map[string]any{"deal_id": dealID})
		default:
			return nil, model.NewTradeError(model.CodeDealInvalidated, "deal invalidated",
				map[string]any{"deal_id": dealID})
		}
	}

	today := s.now()
	if pastExpiry(entry.ExpiresAt, today) {
		if err := s.transition(ctx, dealID, model.StatusExpired); err != nil {
			return nil, err
		}
		return nil, model.NewTradeError(model.CodeDealExpired, "deal expired",
			map[string]any{"deal_id": dealID, "expires_at": entry.ExpiresAt})
	}

	parsed, err := model.ParseDeal(entry.Deal)
	if err != nil {
		return nil, err
	}
	canonical := model.CanonicalizeDeal(parsed)

	serialized, err := model.SerializeDeal(canonical)
	if err != nil {
		return nil, fmt.Errorf("serialize deal: %w", err)
	}
	hash, err := s.computeAssetsHash(ctx, canonical, serialized)
	if err != nil {
		return nil, err
	}
	if hash != entry.AssetsHash {
		if err := s.transition(ctx, dealID, model.StatusInvalidated); err != nil {
			return nil, err
		}
		return nil, model.NewTradeError(model.CodeDealInvalidated, "deal assets have changed",
			map[string]any{"deal_id": dealID})
	}

	for _, team := range canonical.Teams {
		for _, a := range canonical.Legs[team] {
			lock, err := s.store.GetLock(ctx, a.Key())
			if err != nil && !errors.Is(err, league.ErrNotFound) {
				return nil, fmt.Errorf("load lock %s: %w", a.Key(), err)
			}
			if lock == nil || lock.DealID != dealID {
				if err := s.transition(ctx, dealID, model.StatusInvalidated); err != nil {
					return nil, err
				}
				return nil, model.NewTradeError(model.CodeDealInvalidated, "asset lock missing",
					map[string]any{"deal_id": dealID, "asset_key": a.Key()})
			}
		}
	}
	return canonical, nil
}

// MarkExecuted finalizes an executed deal and releases its locks. A missing
// record is a no-op, so repeated calls are safe.
func (s *Service) MarkExecuted(ctx context.Context, dealID string) error {
	_, err := s.store.GetAgreement(ctx, dealID)
	if errors.Is(err, league.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load agreement %s: %w", dealID, err)
	}
	return s.transition(ctx, dealID, model.StatusExecuted)
}

// GCExpired sweeps ACTIVE agreements past their expiry, marking each EXPIRED
// and releasing its locks. It returns the number of agreements expired. This
// is an explicit maintenance operation; nothing runs it in the background.
func (s *Service) GCExpired(ctx context.Context) (int, error) {
	entries, err := s.store.ListAgreements(ctx)
	if err != nil {
		return 0, fmt.Errorf("list agreements: %w", err)
	}
	today := s.now()
	expired := 0
	for _, entry := range entries {
		if entry.Status != model.StatusActive || !pastExpiry(entry.ExpiresAt, today) {
			continue
		}
		if err := s.transition(ctx, entry.DealID, model.StatusExpired); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Agreement returns one committed deal record.
func (s *Service) Agreement(ctx context.Context, dealID string) (*model.Agreement, error) {
	return s.store.GetAgreement(ctx, dealID)
}

// Agreements returns all committed deal records.
func (s *Service) Agreements(ctx context.Context) ([]model.Agreement, error) {
	return s.store.ListAgreements(ctx)
}

// Locks returns the current asset-lock table.
func (s *Service) Locks(ctx context.Context) (map[string]model.AssetLock, error) {
	return s.store.ListLocks(ctx)
}

func (s *Service) transition(ctx context.Context, dealID string, status model.AgreementStatus) error {
	if err := s.store.SetAgreementStatus(ctx, dealID, status); err != nil {
		return fmt.Errorf("set agreement %s status %s: %w", dealID, status, err)
	}
	s.releaseLocks(ctx, dealID)
	return nil
}

func (s *Service) releaseLocks(ctx context.Context, dealID string) {
	if err := s.store.ReleaseLocksForDeal(ctx, dealID); err != nil {
		// The locks carry their own expiry, so a failed release degrades to
		// lazy expiry rather than a permanent leak.
		return
	}
}

// computeAssetsHash hashes the canonical serialized deal together with the
// current owner of every referenced asset. The ownership map is keyed by
// asset key and JSON encoding emits map keys sorted, so the hash input order
// is deterministic. Assets that no longer resolve record an empty owner,
// which still changes the hash relative to commit time.
func (s *Service) computeAssetsHash(ctx context.Context, deal *model.Deal, serialized []byte) (string, error) {
	ownership := make(map[string]string)
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			owner, err := s.assetOwner(ctx, a)
			if err != nil {
				return "", err
			}
			ownership[a.Key()] = owner
		}
	}
	payload := struct {
		Deal      json.RawMessage   `json:"deal"`
		Ownership map[string]string `json:"ownership"`
	}{Deal: serialized, Ownership: ownership}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode hash payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Service) assetOwner(ctx context.Context, a model.Asset) (string, error) {
	var owner string
	var err error
	switch a.Kind {
	case model.AssetPlayer:
		var p *league.PlayerRecord
		p, err = s.store.GetPlayer(ctx, a.PlayerID)
		if err == nil {
			owner = p.TeamID
		}
	case model.AssetPick:
		var p *league.PickRecord
		p, err = s.store.GetPick(ctx, a.PickID)
		if err == nil {
			owner = p.OwnerTeam
		}
	case model.AssetSwap:
		var sw *league.SwapRecord
		sw, err = s.store.GetSwap(ctx, a.SwapID)
		if err == nil {
			owner = sw.OwnerTeam
		}
	default:
		var f *league.FixedAssetRecord
		f, err = s.store.GetFixedAsset(ctx, a.AssetID)
		if err == nil {
			owner = f.OwnerTeam
		}
	}
	if errors.Is(err, league.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve owner of %s: %w", a.Key(), err)
	}
	return owner, nil
}

// pastExpiry is day-granular: an agreement stays usable through its
// expires_at date and expires the day after.
func pastExpiry(expiresAt string, today time.Time) bool {
	return model.PastDate(today, expiresAt)
}
