package negotiation_test

import (
	"context"
	"testing"
	"time"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
	"github.com/courtside/trade-engine/internal/negotiation"
)

func newService() *negotiation.Service {
	svc := negotiation.NewService(league.NewMemoryStore())
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.SetNow(func() time.Time { return at })
	return svc
}

func TestCreateAndGet(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "lal", " bos ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.UserTeamID != "LAL" || sess.OtherTeamID != "BOS" {
		t.Fatalf("teams = %s/%s", sess.UserTeamID, sess.OtherTeamID)
	}
	if sess.Status != "ACTIVE" || sess.Phase != "OPEN" {
		t.Fatalf("status/phase = %s/%s", sess.Status, sess.Phase)
	}

	got, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != sess.SessionID {
		t.Fatalf("session id mismatch")
	}
}

func TestCreateRejectsBadTeams(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for _, pair := range [][2]string{{"", "BOS"}, {"LAL", ""}, {"LAL", "lal"}} {
		_, err := svc.Create(ctx, pair[0], pair[1])
		if model.ErrorCode(err) != model.CodeInvalidTeam {
			t.Fatalf("Create(%q, %q) = %v, want INVALID_TEAM", pair[0], pair[1], err)
		}
	}
}

func TestGetUnknownSession(t *testing.T) {
	svc := newService()
	_, err := svc.Get(context.Background(), "nope")
	if model.ErrorCode(err) != model.CodeNegotiationNotFound {
		t.Fatalf("err = %v, want NEGOTIATION_NOT_FOUND", err)
	}
}

func TestAppendMessage(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "LAL", "BOS")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.AppendMessage(ctx, sess.SessionID, "LAL", "P1 for your 2028 first?"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	updated, err := svc.AppendMessage(ctx, sess.SessionID, "BOS", "Deal.")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(updated.Messages))
	}
	if updated.Messages[1].Speaker != "BOS" || updated.Messages[1].Text != "Deal." {
		t.Fatalf("message = %+v", updated.Messages[1])
	}
}

func TestSetDraftStoresCanonicalForm(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "LAL", "BOS")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.SetDraft(ctx, sess.SessionID, []byte(`{
		"teams": ["lal","BOS"],
		"legs": {
			"LAL": [{"kind":"player","player_id":"P1"}],
			"bos": [{"kind":"pick","pick_id":"2028_R1_BOS"}]
		}
	}`))
	if err != nil {
		t.Fatalf("SetDraft: %v", err)
	}
	if updated.Phase != "DRAFTED" {
		t.Fatalf("phase = %s", updated.Phase)
	}

	deal, err := model.ParseDeal(updated.DraftDeal)
	if err != nil {
		t.Fatalf("stored draft does not parse: %v", err)
	}
	if deal.Teams[0] != "BOS" || deal.Teams[1] != "LAL" {
		t.Fatalf("stored draft not canonical: %v", deal.Teams)
	}
}

func TestSetDraftRejectsStructuralErrors(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "LAL", "BOS")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.SetDraft(ctx, sess.SessionID, []byte(`{"teams":["LAL"],"legs":{"LAL":[]}}`))
	if model.ErrorCode(err) != model.CodeDealInvalidated {
		t.Fatalf("err = %v, want DEAL_INVALIDATED", err)
	}

	// The failed draft does not touch the session.
	got, err := svc.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Phase != "OPEN" || got.DraftDeal != nil {
		t.Fatalf("session mutated by failed draft: %+v", got)
	}
}

func TestSetCommittedClosesSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "LAL", "BOS")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := svc.SetCommitted(ctx, sess.SessionID, "deal-9")
	if err != nil {
		t.Fatalf("SetCommitted: %v", err)
	}
	if updated.CommittedDealID != "deal-9" {
		t.Fatalf("committed deal id = %s", updated.CommittedDealID)
	}
	if updated.Status != "COMMITTED" || updated.Phase != "COMMITTED" {
		t.Fatalf("status/phase = %s/%s", updated.Status, updated.Phase)
	}
}
