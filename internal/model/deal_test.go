package model_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/courtside/trade-engine/internal/model"
)

func mustParse(t *testing.T, payload string) *model.Deal {
	t.Helper()
	deal, err := model.ParseDeal([]byte(payload))
	if err != nil {
		t.Fatalf("ParseDeal: %v", err)
	}
	return deal
}

func TestParseDealTwoTeams(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["lal", "BOS"],
		"legs": {
			"LAL": [{"kind":"player","player_id":"201939"}],
			"bos": [{"kind":"pick","pick_id":"2028_R1_BOS"}]
		}
	}`)

	if !reflect.DeepEqual(deal.Teams, []string{"LAL", "BOS"}) {
		t.Fatalf("teams = %v", deal.Teams)
	}
	if got := deal.Legs["LAL"][0].PlayerID; got != "201939" {
		t.Fatalf("player_id = %q", got)
	}
	if got := deal.Legs["BOS"][0].PickID; got != "2028_R1_BOS" {
		t.Fatalf("pick_id = %q", got)
	}
}

func TestParseDealStructuralErrors(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{
			name:     "single team",
			payload:  `{"teams":["LAL"],"legs":{"LAL":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
		{
			name:     "duplicate team",
			payload:  `{"teams":["LAL","lal"],"legs":{"LAL":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
		{
			name:     "legs do not match teams",
			payload:  `{"teams":["LAL","BOS"],"legs":{"LAL":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
		{
			name: "missing to_team on three team deal",
			payload: `{"teams":["LAL","BOS","MIA"],"legs":{
				"LAL":[{"kind":"player","player_id":"1"}],
				"BOS":[],"MIA":[]}}`,
			wantCode: model.CodeMissingToTeam,
		},
		{
			name:     "unknown asset kind",
			payload:  `{"teams":["LAL","BOS"],"legs":{"LAL":[{"kind":"boat"}],"BOS":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
		{
			name:     "malformed pick id",
			payload:  `{"teams":["LAL","BOS"],"legs":{"LAL":[{"kind":"pick","pick_id":"firstrounder"}],"BOS":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
		{
			name:     "player asset without id",
			payload:  `{"teams":["LAL","BOS"],"legs":{"LAL":[{"kind":"player"}],"BOS":[]}}`,
			wantCode: model.CodeDealInvalidated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.ParseDeal([]byte(tc.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := model.ErrorCode(err); got != tc.wantCode {
				t.Fatalf("code = %q, want %q", got, tc.wantCode)
			}
		})
	}
}

func TestParseDealThreeTeamsWithToTeam(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["MIA","LAL","BOS"],
		"legs": {
			"LAL": [{"kind":"player","player_id":"1","to_team":"BOS"}],
			"BOS": [{"kind":"player","player_id":"2","to_team":"MIA"}],
			"MIA": [{"kind":"player","player_id":"3","to_team":"LAL"}]
		}
	}`)
	if len(deal.Teams) != 3 {
		t.Fatalf("teams = %v", deal.Teams)
	}
}

func TestCanonicalizeDealSortsAndIsIdempotent(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["BOS","LAL"],
		"legs": {
			"LAL": [
				{"kind":"pick","pick_id":"2028_R1_LAL"},
				{"kind":"player","player_id":"2"},
				{"kind":"player","player_id":"1"}
			],
			"BOS": []
		}
	}`)

	once := model.CanonicalizeDeal(deal)
	if !reflect.DeepEqual(once.Teams, []string{"BOS", "LAL"}) {
		t.Fatalf("teams = %v", once.Teams)
	}

	leg := once.Legs["LAL"]
	want := []string{"1", "2", "2028_R1_LAL"}
	for i, a := range leg {
		if a.NaturalID() != want[i] {
			t.Fatalf("leg[%d] = %q, want %q", i, a.NaturalID(), want[i])
		}
	}

	twice := model.CanonicalizeDeal(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("canonicalize is not idempotent")
	}
}

func TestSerializeDealDeterministic(t *testing.T) {
	a := mustParse(t, `{
		"teams": ["BOS","LAL"],
		"legs": {
			"LAL": [{"kind":"player","player_id":"2"},{"kind":"player","player_id":"1"}],
			"BOS": [{"kind":"pick","pick_id":"2028_R1_BOS"}]
		}
	}`)
	b := mustParse(t, `{
		"teams": ["LAL","BOS"],
		"legs": {
			"BOS": [{"kind":"pick","pick_id":"2028_R1_BOS"}],
			"LAL": [{"kind":"player","player_id":"1"},{"kind":"player","player_id":"2"}]
		}
	}`)

	rawA, err := model.SerializeDeal(model.CanonicalizeDeal(a))
	if err != nil {
		t.Fatalf("SerializeDeal: %v", err)
	}
	rawB, err := model.SerializeDeal(model.CanonicalizeDeal(b))
	if err != nil {
		t.Fatalf("SerializeDeal: %v", err)
	}
	if string(rawA) != string(rawB) {
		t.Fatalf("serializations differ:\n%s\n%s", rawA, rawB)
	}
}

func TestSerializeDealRoundTrip(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["LAL","BOS"],
		"legs": {
			"LAL": [{"kind":"swap","pick_id_a":"2028_R1_LAL","pick_id_b":"2028_R1_BOS"}],
			"BOS": [{"kind":"fixed_asset","asset_id":"CASH_2026_BOS"}]
		},
		"meta": {"note":"swap test"}
	}`)
	canonical := model.CanonicalizeDeal(deal)

	raw, err := model.SerializeDeal(canonical)
	if err != nil {
		t.Fatalf("SerializeDeal: %v", err)
	}
	back, err := model.ParseDeal(raw)
	if err != nil {
		t.Fatalf("ParseDeal round-trip: %v", err)
	}
	if !reflect.DeepEqual(model.CanonicalizeDeal(back), canonical) {
		t.Fatal("round-trip changed the deal")
	}
}

func TestSwapIDDefaultsToCanonical(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["LAL","BOS"],
		"legs": {
			"LAL": [{"kind":"swap","pick_id_a":"2028_R1_LAL","pick_id_b":"2028_R1_BOS"}],
			"BOS": []
		}
	}`)
	want := model.CanonicalSwapID("2028_R1_BOS", "2028_R1_LAL")
	if got := deal.Legs["LAL"][0].SwapID; got != want {
		t.Fatalf("swap_id = %q, want %q", got, want)
	}
	if want != model.CanonicalSwapID("2028_R1_LAL", "2028_R1_BOS") {
		t.Fatal("CanonicalSwapID depends on argument order")
	}
}

func TestResolveReceiver(t *testing.T) {
	deal := mustParse(t, `{
		"teams": ["LAL","BOS"],
		"legs": {
			"LAL": [{"kind":"player","player_id":"1"}],
			"BOS": []
		}
	}`)

	got, err := model.ResolveReceiver(deal, "LAL", deal.Legs["LAL"][0])
	if err != nil {
		t.Fatalf("ResolveReceiver: %v", err)
	}
	if got != "BOS" {
		t.Fatalf("receiver = %q, want BOS", got)
	}

	three := &model.Deal{
		Teams: []string{"BOS", "LAL", "MIA"},
		Legs: map[string][]model.Asset{
			"LAL": {{Kind: model.AssetPlayer, PlayerID: "1"}},
			"BOS": {}, "MIA": {},
		},
	}
	if _, err := model.ResolveReceiver(three, "LAL", three.Legs["LAL"][0]); model.ErrorCode(err) != model.CodeMissingToTeam {
		t.Fatalf("err = %v, want MISSING_TO_TEAM", err)
	}
}

func TestAssetKey(t *testing.T) {
	cases := []struct {
		asset model.Asset
		want  string
	}{
		{model.Asset{Kind: model.AssetPlayer, PlayerID: "1"}, "player:1"},
		{model.Asset{Kind: model.AssetPick, PickID: "2028_R1_BOS"}, "pick:2028_R1_BOS"},
		{model.Asset{Kind: model.AssetSwap, SwapID: "SWAP_A__B"}, "swap:SWAP_A__B"},
		{model.Asset{Kind: model.AssetFixed, AssetID: "CASH_1"}, "fixed:CASH_1"},
	}
	for _, tc := range cases {
		if got := tc.asset.Key(); got != tc.want {
			t.Fatalf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestParsePickID(t *testing.T) {
	ref, err := model.ParsePickID("2028_R1_BOS")
	if err != nil {
		t.Fatalf("ParsePickID: %v", err)
	}
	if ref.Year != 2028 || ref.Round != 1 || ref.OriginalOwner != "BOS" {
		t.Fatalf("ref = %+v", ref)
	}

	if _, err := model.ParsePickID("2028_R3_BOS"); !errors.Is(err, model.ErrInvalidPickID) {
		t.Fatalf("err = %v, want ErrInvalidPickID", err)
	}
	if got := model.MakePickID(2028, 1, "BOS"); got != "2028_R1_BOS" {
		t.Fatalf("MakePickID = %q", got)
	}
}

func TestAssetLockExpiredDayGranularity(t *testing.T) {
	lock := model.AssetLock{DealID: "d", ExpiresAt: "2026-07-03"}
	if lock.Expired(time.Date(2026, 7, 3, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("lock should hold through its expiry date")
	}
	if !lock.Expired(time.Date(2026, 7, 4, 0, 1, 0, 0, time.UTC)) {
		t.Fatal("lock should expire the day after")
	}

	far := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	if (model.AssetLock{DealID: "d"}).Expired(far) {
		t.Fatal("empty expiry should never expire")
	}
	if (model.AssetLock{DealID: "d", ExpiresAt: "not-a-date"}).Expired(far) {
		t.Fatal("unparsable expiry should never expire")
	}
}

func TestTradeErrorUnwrapping(t *testing.T) {
	cause := errors.New("boom")
	err := model.WrapTradeError(model.CodeApplyFailed, "failed to apply trade", nil, cause)

	wrapped := json.Unmarshal([]byte("{"), &struct{}{}) // any non-trade error
	if model.ErrorCode(wrapped) != "" {
		t.Fatal("non-trade error should have empty code")
	}
	if model.ErrorCode(err) != model.CodeApplyFailed {
		t.Fatalf("code = %q", model.ErrorCode(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not preserved through Unwrap")
	}
}
