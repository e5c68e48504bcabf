package league

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	players      map[string]*PlayerRecord
	picks        map[string]*PickRecord
	swaps        map[string]*SwapRecord
	fixed        map[string]*FixedAssetRecord
	agreements   map[string]*model.Agreement
	locks        map[string]model.AssetLock
	transactions []model.Transaction
	sessions     map[string]*model.Session
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:    make(map[string]*PlayerRecord),
		picks:      make(map[string]*PickRecord),
		swaps:      make(map[string]*SwapRecord),
		fixed:      make(map[string]*FixedAssetRecord),
		agreements: make(map[string]*model.Agreement),
		locks:      make(map[string]model.AssetLock),
		sessions:   make(map[string]*model.Session),
	}
}

// --- Seeding helpers (tests and development fixtures) ---

func (s *MemoryStore) SeedPlayer(p PlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.PlayerID] = p.Clone()
}

func (s *MemoryStore) SeedPick(p PickRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.picks[p.PickID] = &cp
}

func (s *MemoryStore) SeedSwap(sw SwapRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sw
	s.swaps[sw.SwapID] = &cp
}

func (s *MemoryStore) SeedFixedAsset(f FixedAssetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := f
	s.fixed[f.AssetID] = &cp
}

// --- Rosters ---

func (s *MemoryStore) GetPlayer(_ context.Context, playerID string) (*PlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdatePlayer(_ context.Context, p *PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[p.PlayerID]; !ok {
		return fmt.Errorf("player %s: %w", p.PlayerID, ErrNotFound)
	}
	s.players[p.PlayerID] = p.Clone()
	return nil
}

func (s *MemoryStore) RosterCount(_ context.Context, teamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.players {
		if p.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) TeamPayroll(_ context.Context, teamID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, p := range s.players {
		if p.TeamID == teamID {
			total = total.Add(p.Salary)
		}
	}
	return total, nil
}

// --- Picks, swap rights, fixed assets ---

func (s *MemoryStore) GetPick(_ context.Context, pickID string) (*PickRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.picks[pickID]
	if !ok {
		return nil, fmt.Errorf("pick %s: %w", pickID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPicks(_ context.Context) ([]PickRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	picks := make([]PickRecord, 0, len(s.picks))
	for _, p := range s.picks {
		picks = append(picks, *p)
	}
	return picks, nil
}

func (s *MemoryStore) UpdatePickOwner(_ context.Context, pickID, ownerTeam string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.picks[pickID]
	if !ok {
		return fmt.Errorf("pick %s: %w", pickID, ErrNotFound)
	}
	p.OwnerTeam = ownerTeam
	return nil
}

func (s *MemoryStore) GetSwap(_ context.Context, swapID string) (*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sw, ok := s.swaps[swapID]
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
	}
	cp := *sw
	return &cp, nil
}

func (s *MemoryStore) PutSwap(_ context.Context, sw *SwapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sw
	s.swaps[sw.SwapID] = &cp
	return nil
}

func (s *MemoryStore) UpdateSwapOwner(_ context.Context, swapID, ownerTeam string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.swaps[swapID]
	if !ok {
		return fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
	}
	sw.OwnerTeam = ownerTeam
	return nil
}

func (s *MemoryStore) DeleteSwap(_ context.Context, swapID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.swaps, swapID)
	return nil
}

func (s *MemoryStore) GetFixedAsset(_ context.Context, assetID string) (*FixedAssetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fixed[assetID]
	if !ok {
		return nil, fmt.Errorf("fixed asset %s: %w", assetID, ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) UpdateFixedAssetOwner(_ context.Context, assetID, ownerTeam string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fixed[assetID]
	if !ok {
		return fmt.Errorf("fixed asset %s: %w", assetID, ErrNotFound)
	}
	f.OwnerTeam = ownerTeam
	return nil
}

// --- Committed agreements ---

func (s *MemoryStore) PutAgreement(_ context.Context, a *model.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.agreements[a.DealID] = &cp
	return nil
}

func (s *MemoryStore) GetAgreement(_ context.Context, dealID string) (*model.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agreements[dealID]
	if !ok {
		return nil, fmt.Errorf("agreement %s: %w", dealID, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAgreements(_ context.Context) ([]model.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agreements := make([]model.Agreement, 0, len(s.agreements))
	for _, a := range s.agreements {
		agreements = append(agreements, *a)
	}
	return agreements, nil
}

func (s *MemoryStore) SetAgreementStatus(_ context.Context, dealID string, status model.AgreementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agreements[dealID]
	if !ok {
		return fmt.Errorf("agreement %s: %w", dealID, ErrNotFound)
	}
	a.Status = status
	return nil
}

// --- Asset locks ---

func (s *MemoryStore) GetLock(_ context.Context, assetKey string) (*model.AssetLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.locks[assetKey]
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", assetKey, ErrNotFound)
	}
	cp := l
	return &cp, nil
}

func (s *MemoryStore) PutLock(_ context.Context, assetKey string, lock model.AssetLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[assetKey] = lock
	return nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, assetKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, assetKey)
	return nil
}

func (s *MemoryStore) ReleaseLocksForDeal(_ context.Context, dealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, lock := range s.locks {
		if lock.DealID == dealID {
			delete(s.locks, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListLocks(_ context.Context) (map[string]model.AssetLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locks := make(map[string]model.AssetLock, len(s.locks))
	for k, v := range s.locks {
		locks[k] = v
	}
	return locks, nil
}

// --- Immutable transaction log ---

func (s *MemoryStore) AppendTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Transaction(nil), s.transactions...), nil
}

// --- Negotiation sessions ---

func (s *MemoryStore) PutSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	cp.Messages = append([]model.SessionMessage(nil), sess.Messages...)
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	cp := *sess
	cp.Messages = append([]model.SessionMessage(nil), sess.Messages...)
	return &cp, nil
}
