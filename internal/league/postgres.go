package league

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Salaries are stored as NUMERIC for exact decimal precision; deals,
// transcripts, and asset summaries as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

// --- Rosters ---

func (s *PostgresStore) GetPlayer(ctx context.Context, playerID string) (*PlayerRecord, error) {
	var p PlayerRecord
	var salary string
	var bans []byte

	err := s.pool.QueryRow(ctx,
		`SELECT player_id, team_id, salary::TEXT,
		        COALESCE(signed_date, ''), signed_via_free_agency,
		        COALESCE(last_action_type, ''), COALESCE(last_action_date, ''),
		        COALESCE(acquired_date, ''), acquired_via_trade,
		        COALESCE(trade_return_bans, '{}'::JSONB)
		 FROM players WHERE player_id = $1`, playerID).
		Scan(&p.PlayerID, &p.TeamID, &salary,
			&p.SignedDate, &p.SignedViaFreeAgency,
			&p.LastActionType, &p.LastActionDate,
			&p.AcquiredDate, &p.AcquiredViaTrade, &bans)
	if err != nil {
		return nil, notFound(err, "player", playerID)
	}

	p.Salary, _ = decimal.NewFromString(salary)
	if len(bans) > 0 {
		_ = json.Unmarshal(bans, &p.TradeReturnBans)
	}
	return &p, nil
}

func (s *PostgresStore) UpdatePlayer(ctx context.Context, p *PlayerRecord) error {
	bans, err := json.Marshal(p.TradeReturnBans)
	if err != nil {
		return fmt.Errorf("marshal trade_return_bans: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE players
		 SET team_id = $2, salary = $3::NUMERIC,
		     signed_date = $4, signed_via_free_agency = $5,
		     last_action_type = $6, last_action_date = $7,
		     acquired_date = $8, acquired_via_trade = $9,
		     trade_return_bans = $10::JSONB
		 WHERE player_id = $1`,
		p.PlayerID, p.TeamID, p.Salary.String(),
		p.SignedDate, p.SignedViaFreeAgency,
		p.LastActionType, p.LastActionDate,
		p.AcquiredDate, p.AcquiredViaTrade, bans)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %s: %w", p.PlayerID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RosterCount(ctx context.Context, teamID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM players WHERE team_id = $1`, teamID).Scan(&count)
	return count, err
}

func (s *PostgresStore) TeamPayroll(ctx context.Context, teamID string) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(salary), 0)::TEXT FROM players WHERE team_id = $1`, teamID).
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	payroll, _ := decimal.NewFromString(total)
	return payroll, nil
}

// --- Picks, swap rights, fixed assets ---

func (s *PostgresStore) GetPick(ctx context.Context, pickID string) (*PickRecord, error) {
	var p PickRecord
	err := s.pool.QueryRow(ctx,
		`SELECT pick_id, year, round, original_owner, owner_team
		 FROM draft_picks WHERE pick_id = $1`, pickID).
		Scan(&p.PickID, &p.Year, &p.Round, &p.OriginalOwner, &p.OwnerTeam)
	if err != nil {
		return nil, notFound(err, "pick", pickID)
	}
	return &p, nil
}

func (s *PostgresStore) ListPicks(ctx context.Context) ([]PickRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pick_id, year, round, original_owner, owner_team
		 FROM draft_picks ORDER BY year, round, original_owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var picks []PickRecord
	for rows.Next() {
		var p PickRecord
		if err := rows.Scan(&p.PickID, &p.Year, &p.Round, &p.OriginalOwner, &p.OwnerTeam); err != nil {
			return nil, err
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

func (s *PostgresStore) UpdatePickOwner(ctx context.Context, pickID, ownerTeam string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE draft_picks SET owner_team = $2 WHERE pick_id = $1`, pickID, ownerTeam)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pick %s: %w", pickID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetSwap(ctx context.Context, swapID string) (*SwapRecord, error) {
	var sw SwapRecord
	err := s.pool.QueryRow(ctx,
		`SELECT swap_id, pick_id_a, pick_id_b, owner_team, active
		 FROM swap_rights WHERE swap_id = $1`, swapID).
		Scan(&sw.SwapID, &sw.PickIDA, &sw.PickIDB, &sw.OwnerTeam, &sw.Active)
	if err != nil {
		return nil, notFound(err, "swap", swapID)
	}
	return &sw, nil
}

func (s *PostgresStore) PutSwap(ctx context.Context, sw *SwapRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO swap_rights (swap_id, pick_id_a, pick_id_b, owner_team, active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (swap_id) DO UPDATE
		 SET pick_id_a = EXCLUDED.pick_id_a, pick_id_b = EXCLUDED.pick_id_b,
		     owner_team = EXCLUDED.owner_team, active = EXCLUDED.active`,
		sw.SwapID, sw.PickIDA, sw.PickIDB, sw.OwnerTeam, sw.Active)
	return err
}

func (s *PostgresStore) UpdateSwapOwner(ctx context.Context, swapID, ownerTeam string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE swap_rights SET owner_team = $2 WHERE swap_id = $1`, swapID, ownerTeam)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("swap %s: %w", swapID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteSwap(ctx context.Context, swapID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM swap_rights WHERE swap_id = $1`, swapID)
	return err
}

func (s *PostgresStore) GetFixedAsset(ctx context.Context, assetID string) (*FixedAssetRecord, error) {
	var f FixedAssetRecord
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, owner_team, COALESCE(label, '')
		 FROM fixed_assets WHERE asset_id = $1`, assetID).
		Scan(&f.AssetID, &f.OwnerTeam, &f.Label)
	if err != nil {
		return nil, notFound(err, "fixed asset", assetID)
	}
	return &f, nil
}

func (s *PostgresStore) UpdateFixedAssetOwner(ctx context.Context, assetID, ownerTeam string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fixed_assets SET owner_team = $2 WHERE asset_id = $1`, assetID, ownerTeam)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fixed asset %s: %w", assetID, ErrNotFound)
	}
	return nil
}

// --- Committed agreements ---

func (s *PostgresStore) PutAgreement(ctx context.Context, a *model.Agreement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_agreements (deal_id, deal, assets_hash, created_at, expires_at, status)
		 VALUES ($1, $2::JSONB, $3, $4, $5, $6)
		 ON CONFLICT (deal_id) DO UPDATE
		 SET deal = EXCLUDED.deal, assets_hash = EXCLUDED.assets_hash,
		     expires_at = EXCLUDED.expires_at, status = EXCLUDED.status`,
		a.DealID, []byte(a.Deal), a.AssetsHash, a.CreatedAt, a.ExpiresAt, string(a.Status))
	return err
}

func (s *PostgresStore) GetAgreement(ctx context.Context, dealID string) (*model.Agreement, error) {
	var a model.Agreement
	var deal []byte
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT deal_id, deal, assets_hash, created_at, expires_at, status
		 FROM trade_agreements WHERE deal_id = $1`, dealID).
		Scan(&a.DealID, &deal, &a.AssetsHash, &a.CreatedAt, &a.ExpiresAt, &status)
	if err != nil {
		return nil, notFound(err, "agreement", dealID)
	}
	a.Deal = deal
	a.Status = model.AgreementStatus(status)
	return &a, nil
}

func (s *PostgresStore) ListAgreements(ctx context.Context) ([]model.Agreement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT deal_id, deal, assets_hash, created_at, expires_at, status
		 FROM trade_agreements ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agreements []model.Agreement
	for rows.Next() {
		var a model.Agreement
		var deal []byte
		var status string
		if err := rows.Scan(&a.DealID, &deal, &a.AssetsHash, &a.CreatedAt, &a.ExpiresAt, &status); err != nil {
			return nil, err
		}
		a.Deal = deal
		a.Status = model.AgreementStatus(status)
		agreements = append(agreements, a)
	}
	return agreements, rows.Err()
}

func (s *PostgresStore) SetAgreementStatus(ctx context.Context, dealID string, status model.AgreementStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trade_agreements SET status = $2 WHERE deal_id = $1`, dealID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agreement %s: %w", dealID, ErrNotFound)
	}
	return nil
}

// --- Asset locks ---

func (s *PostgresStore) GetLock(ctx context.Context, assetKey string) (*model.AssetLock, error) {
	var l model.AssetLock
	err := s.pool.QueryRow(ctx,
		`SELECT deal_id, expires_at FROM asset_locks WHERE asset_key = $1`, assetKey).
		Scan(&l.DealID, &l.ExpiresAt)
	if err != nil {
		return nil, notFound(err, "lock", assetKey)
	}
	return &l, nil
}

func (s *PostgresStore) PutLock(ctx context.Context, assetKey string, lock model.AssetLock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_locks (asset_key, deal_id, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (asset_key) DO UPDATE
		 SET deal_id = EXCLUDED.deal_id, expires_at = EXCLUDED.expires_at`,
		assetKey, lock.DealID, lock.ExpiresAt)
	return err
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, assetKey string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_locks WHERE asset_key = $1`, assetKey)
	return err
}

func (s *PostgresStore) ReleaseLocksForDeal(ctx context.Context, dealID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_locks WHERE deal_id = $1`, dealID)
	return err
}

func (s *PostgresStore) ListLocks(ctx context.Context) (map[string]model.AssetLock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_key, deal_id, expires_at FROM asset_locks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locks := make(map[string]model.AssetLock)
	for rows.Next() {
		var key string
		var l model.AssetLock
		if err := rows.Scan(&key, &l.DealID, &l.ExpiresAt); err != nil {
			return nil, err
		}
		locks[key] = l
	}
	return locks, rows.Err()
}

// --- Immutable transaction log ---

func (s *PostgresStore) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	assets, err := json.Marshal(tx.Assets)
	if err != nil {
		return fmt.Errorf("marshal transaction assets: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO transactions (id, deal_id, source, date, assets, created_at)
		 VALUES ($1, $2, $3, $4, $5::JSONB, $6)`,
		tx.ID, tx.DealID, tx.Source, tx.Date, assets, tx.CreatedAt)
	return err
}

func (s *PostgresStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(deal_id, ''), source, date, assets, created_at
		 FROM transactions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var assets []byte
		if err := rows.Scan(&tx.ID, &tx.DealID, &tx.Source, &tx.Date, &assets, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(assets, &tx.Assets); err != nil {
			return nil, fmt.Errorf("unmarshal transaction assets: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// --- Negotiation sessions ---

func (s *PostgresStore) PutSession(ctx context.Context, sess *model.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO negotiation_sessions (session_id, payload, updated_at)
		 VALUES ($1, $2::JSONB, $3)
		 ON CONFLICT (session_id) DO UPDATE
		 SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		sess.SessionID, payload, sess.UpdatedAt)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM negotiation_sessions WHERE session_id = $1`, sessionID).
		Scan(&payload)
	if err != nil {
		return nil, notFound(err, "session", sessionID)
	}
	var sess model.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &sess, nil
}
