// Package trade provides the HTTP handlers for validating, committing,
// verifying, and executing deals, and for negotiation sessions.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/courtside/trade-engine/internal/agreements"
	"github.com/courtside/trade-engine/internal/apply"
	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/metrics"
	"github.com/courtside/trade-engine/internal/model"
	"github.com/courtside/trade-engine/internal/negotiation"
	"github.com/courtside/trade-engine/internal/rules"
)

// Service handles deal operations. Execute serializes under a mutex so the
// verify-then-apply pair runs without interleaving (single-instance). For
// horizontal scaling, replace with distributed locking; the ownership-hash
// re-check at verify time still catches external drift.
type Service struct {
	store      league.Store
	consts     league.Constants
	registry   *rules.Registry
	agreements *agreements.Service
	engine     *apply.Engine
	sessions   *negotiation.Service
	mu         sync.Mutex
	wsHub      *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(
	store league.Store,
	consts league.Constants,
	registry *rules.Registry,
	agr *agreements.Service,
	engine *apply.Engine,
	sessions *negotiation.Service,
	hub *WSHub,
) *Service {
	return &Service{
		store:      store,
		consts:     consts,
		registry:   registry,
		agreements: agr,
		engine:     engine,
		sessions:   sessions,
		wsHub:      hub,
	}
}

// --- Request/Response types ---

// CommitRequest is the JSON body for POST /deals/commit.
type CommitRequest struct {
	Deal      json.RawMessage `json:"deal"`
	ValidDays int             `json:"valid_days"` // 0 → default
}

// ValidateResponse is returned from POST /deals/validate.
type ValidateResponse struct {
	Valid bool        `json:"valid"`
	Deal  *model.Deal `json:"deal"`
}

// VerifyResponse is returned from POST /deals/{dealID}/verify.
type VerifyResponse struct {
	DealID string      `json:"deal_id"`
	Status string      `json:"status"`
	Deal   *model.Deal `json:"deal"`
}

// ExecuteResponse is returned from POST /deals/{dealID}/execute.
type ExecuteResponse struct {
	DealID      string             `json:"deal_id"`
	Status      string             `json:"status"`
	Transaction *model.Transaction `json:"transaction"`
}

// CreateSessionRequest is the JSON body for POST /sessions.
type CreateSessionRequest struct {
	UserTeamID  string `json:"user_team_id"`
	OtherTeamID string `json:"other_team_id"`
}

// SessionMessageRequest is the JSON body for POST /sessions/{id}/messages.
type SessionMessageRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// CommitSessionRequest is the optional JSON body for
// POST /sessions/{id}/commit.
type CommitSessionRequest struct {
	ValidDays int `json:"valid_days"` // 0 → default
}

// --- HTTP Handlers ---

// ValidateDeal handles POST /api/v1/deals/validate.
// Parses and rule-checks a deal without persisting anything.
func (s *Service) ValidateDeal(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	deal, err := model.ParseDeal(payload)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	canonical := model.CanonicalizeDeal(deal)

	ctx := r.Context()
	rc, err := rules.BuildContext(ctx, s.store, s.consts, canonical, rules.BuildOptions{})
	if err != nil {
		writeTradeError(w, err)
		return
	}
	if err := s.registry.ValidateAll(canonical, rc); err != nil {
		metrics.RuleRejections.WithLabelValues(model.ErrorCode(err)).Inc()
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Deal: canonical})
}

// CommitDeal handles POST /api/v1/deals/commit.
// Validates the deal, persists an ACTIVE agreement, and locks its assets.
func (s *Service) CommitDeal(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	deal, err := model.ParseDeal(req.Deal)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	s.mu.Lock()
	agreement, err := s.agreements.Commit(r.Context(), deal, req.ValidDays)
	s.mu.Unlock()
	if err != nil {
		if code := model.ErrorCode(err); code != "" {
			metrics.RuleRejections.WithLabelValues(code).Inc()
		}
		writeTradeError(w, err)
		return
	}

	metrics.DealsCommitted.Inc()
	slog.Info("deal committed",
		"deal_id", agreement.DealID,
		"expires_at", agreement.ExpiresAt,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "deal_committed",
			DealID: agreement.DealID,
			Status: string(agreement.Status),
		})
	}
	writeJSON(w, http.StatusCreated, agreement)
}

// VerifyDeal handles POST /api/v1/deals/{dealID}/verify.
// Re-runs the ownership-hash and lock checks without executing.
func (s *Service) VerifyDeal(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")

	deal, err := s.agreements.Verify(r.Context(), dealID)
	if err != nil {
		if code := model.ErrorCode(err); code != "" {
			metrics.VerifyFailures.WithLabelValues(code).Inc()
		}
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{
		DealID: dealID,
		Status: string(model.StatusActive),
		Deal:   deal,
	})
}

// ExecuteDeal handles POST /api/v1/deals/{dealID}/execute.
// Runs verify immediately before apply, then marks the agreement EXECUTED.
func (s *Service) ExecuteDeal(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	deal, err := s.agreements.Verify(ctx, dealID)
	if err != nil {
		if code := model.ErrorCode(err); code != "" {
			metrics.VerifyFailures.WithLabelValues(code).Inc()
		}
		writeTradeError(w, err)
		return
	}

	tx, err := s.engine.Apply(ctx, deal, "trade_engine", dealID)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	if err := s.agreements.MarkExecuted(ctx, dealID); err != nil {
		writeTradeError(w, err)
		return
	}

	metrics.DealsExecuted.Inc()
	slog.Info("deal executed",
		"deal_id", dealID,
		"transaction_id", tx.ID,
		"teams", deal.Teams,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "trade_executed",
			DealID:        dealID,
			Teams:         deal.Teams,
			Status:        string(model.StatusExecuted),
			TransactionID: tx.ID,
		})
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{
		DealID:      dealID,
		Status:      string(model.StatusExecuted),
		Transaction: tx,
	})
}

// GCAgreements handles POST /api/v1/agreements/gc.
// Expires ACTIVE agreements past their expiry and releases their locks.
func (s *Service) GCAgreements(w http.ResponseWriter, r *http.Request) {
	expired, err := s.agreements.GCExpired(r.Context())
	if err != nil {
		writeTradeError(w, err)
		return
	}
	if expired > 0 {
		slog.Info("expired agreements collected", "count", expired)
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// ListAgreements handles GET /api/v1/agreements.
func (s *Service) ListAgreements(w http.ResponseWriter, r *http.Request) {
	list, err := s.agreements.Agreements(r.Context())
	if err != nil {
		writeError(w, "failed to list agreements", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.Agreement{}
	}
	active := 0
	for _, a := range list {
		if a.Status == model.StatusActive {
			active++
		}
	}
	metrics.ActiveAgreements.Set(float64(active))
	writeJSON(w, http.StatusOK, list)
}

// GetAgreement handles GET /api/v1/agreements/{dealID}.
func (s *Service) GetAgreement(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")

	agreement, err := s.agreements.Agreement(r.Context(), dealID)
	if errors.Is(err, league.ErrNotFound) {
		writeError(w, "agreement not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load agreement", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, agreement)
}

// ListLocks handles GET /api/v1/locks.
func (s *Service) ListLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := s.agreements.Locks(r.Context())
	if err != nil {
		writeError(w, "failed to list locks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, locks)
}

// ListTransactions handles GET /api/v1/transactions.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// CreateSession handles POST /api/v1/sessions.
func (s *Service) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.UserTeamID, req.OtherTeamID)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /api/v1/sessions/{sessionID}.
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// AppendSessionMessage handles POST /api/v1/sessions/{sessionID}/messages.
func (s *Service) AppendSessionMessage(w http.ResponseWriter, r *http.Request) {
	var req SessionMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.AppendMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Speaker, req.Text)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SetSessionDraft handles PUT /api/v1/sessions/{sessionID}/draft.
// The body is a deal wire payload; it is canonicalized and staged without
// rule validation.
func (s *Service) SetSessionDraft(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.SetDraft(r.Context(), chi.URLParam(r, "sessionID"), payload)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CommitSessionDraft handles POST /api/v1/sessions/{sessionID}/commit.
// Promotes the session's staged draft to a committed agreement and links the
// deal id back onto the session.
func (s *Service) CommitSessionDraft(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req CommitSessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body optional

	sess, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	if len(sess.DraftDeal) == 0 {
		writeTradeError(w, model.NewTradeError(model.CodeDealInvalidated, "session has no draft deal",
			map[string]any{"session_id": sessionID}))
		return
	}
	deal, err := model.ParseDeal(sess.DraftDeal)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	s.mu.Lock()
	agreement, err := s.agreements.Commit(r.Context(), deal, req.ValidDays)
	s.mu.Unlock()
	if err != nil {
		if code := model.ErrorCode(err); code != "" {
			metrics.RuleRejections.WithLabelValues(code).Inc()
		}
		writeTradeError(w, err)
		return
	}

	// The agreement stands even if the back-link fails; the failure is
	// visible in the logs rather than rolling back a committed deal.
	if _, err := s.sessions.SetCommitted(r.Context(), sessionID, agreement.DealID); err != nil {
		slog.Warn("failed to link committed deal to session",
			"session_id", sessionID, "deal_id", agreement.DealID, "err", err)
	}

	metrics.DealsCommitted.Inc()
	slog.Info("session draft committed",
		"session_id", sessionID,
		"deal_id", agreement.DealID,
		"expires_at", agreement.ExpiresAt,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "deal_committed",
			DealID: agreement.DealID,
			Status: string(agreement.Status),
		})
	}
	writeJSON(w, http.StatusCreated, agreement)
}

// --- Response helpers ---

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a plain JSON error response for non-domain failures.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeTradeError maps a TradeError to {code, message, details} with the
// HTTP status for its code. Non-trade errors become opaque 500s.
func writeTradeError(w http.ResponseWriter, err error) {
	var te *model.TradeError
	if !errors.As(err, &te) {
		slog.Error("internal error", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusForCode(te.Code), te)
}

func statusForCode(code string) int {
	switch code {
	case model.CodeNegotiationNotFound:
		return http.StatusNotFound
	case model.CodeAssetLocked, model.CodeDealExpired, model.CodeDealInvalidated,
		model.CodeDealAlreadyExecuted:
		return http.StatusConflict
	case model.CodeApplyFailed:
		return http.StatusInternalServerError
	default:
		// Validation violations: structurally sound request, illegal deal.
		return http.StatusUnprocessableEntity
	}
}
