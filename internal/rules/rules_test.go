package rules_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
	"github.com/courtside/trade-engine/internal/rules"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// twoTeamDeal builds a canonical LAL/BOS deal from the given legs.
func twoTeamDeal(lal, bos []model.Asset) *model.Deal {
	return model.CanonicalizeDeal(&model.Deal{
		Teams: []string{"LAL", "BOS"},
		Legs:  map[string][]model.Asset{"LAL": lal, "BOS": bos},
	})
}

func player(id string) model.Asset { return model.Asset{Kind: model.AssetPlayer, PlayerID: id} }
func pick(id string) model.Asset   { return model.Asset{Kind: model.AssetPick, PickID: id} }

func buildCtx(t *testing.T, st league.Store, consts league.Constants, deal *model.Deal, today string) *rules.Context {
	t.Helper()
	rc, err := rules.BuildContext(context.Background(), st, consts, deal, rules.BuildOptions{Today: date(today)})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	return rc
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := model.ErrorCode(err); got != code {
		t.Fatalf("code = %q (%v), want %q", got, err, code)
	}
}

// seedRoster puts one player per team plus the named traded players.
func seedRoster(st *league.MemoryStore, traded ...league.PlayerRecord) {
	for _, p := range traded {
		st.SeedPlayer(p)
	}
}

func TestDeadlineRule(t *testing.T) {
	consts := league.DefaultConstants(2026)
	consts.TradeDeadline = "2027-02-06"
	deal := twoTeamDeal(nil, nil)

	rule := rules.DeadlineRule{}
	if err := rule.Validate(deal, &rules.Context{Consts: consts, Today: date("2027-02-06")}); err != nil {
		t.Fatalf("deadline day should pass: %v", err)
	}
	// Day granularity: any time of day on the deadline day still passes.
	noon := date("2027-02-06").Add(12 * time.Hour)
	if err := rule.Validate(deal, &rules.Context{Consts: consts, Today: noon}); err != nil {
		t.Fatalf("noon on deadline day should pass: %v", err)
	}
	err := rule.Validate(deal, &rules.Context{Consts: consts, Today: date("2027-02-07")})
	wantCode(t, err, model.CodeTradeDeadlinePassed)
	err = rule.Validate(deal, &rules.Context{Consts: consts, Today: date("2027-02-07").Add(12 * time.Hour)})
	wantCode(t, err, model.CodeTradeDeadlinePassed)

	consts.TradeDeadline = ""
	if err := rule.Validate(deal, &rules.Context{Consts: consts, Today: date("2099-01-01")}); err != nil {
		t.Fatalf("empty deadline should disable the rule: %v", err)
	}
}

func TestTeamLegsRule(t *testing.T) {
	consts := league.DefaultConstants(2026)
	consts.TeamIDs = []string{"LAL", "BOS", "MIA"}
	rule := rules.TeamLegsRule{}
	rc := &rules.Context{Consts: consts, Today: date("2026-07-01")}

	ok := twoTeamDeal([]model.Asset{player("1")}, nil)
	if err := rule.Validate(ok, rc); err != nil {
		t.Fatalf("valid deal rejected: %v", err)
	}

	unknown := model.CanonicalizeDeal(&model.Deal{
		Teams: []string{"LAL", "XXX"},
		Legs:  map[string][]model.Asset{"LAL": nil, "XXX": nil},
	})
	wantCode(t, rule.Validate(unknown, rc), model.CodeInvalidTeam)

	selfSend := twoTeamDeal([]model.Asset{{Kind: model.AssetPlayer, PlayerID: "1", ToTeam: "LAL"}}, nil)
	wantCode(t, rule.Validate(selfSend, rc), model.CodeInvalidTeam)

	outside := twoTeamDeal([]model.Asset{{Kind: model.AssetPlayer, PlayerID: "1", ToTeam: "MIA"}}, nil)
	wantCode(t, rule.Validate(outside, rc), model.CodeInvalidTeam)
}

func TestDuplicateAssetRule(t *testing.T) {
	rule := rules.DuplicateAssetRule{}
	rc := &rules.Context{Consts: league.DefaultConstants(2026), Today: date("2026-07-01")}

	dup := twoTeamDeal([]model.Asset{player("1")}, []model.Asset{player("1")})
	wantCode(t, rule.Validate(dup, rc), model.CodeDuplicateAsset)

	ok := twoTeamDeal([]model.Asset{player("1")}, []model.Asset{player("2")})
	if err := rule.Validate(ok, rc); err != nil {
		t.Fatalf("distinct assets rejected: %v", err)
	}
}

func TestAssetLockRule(t *testing.T) {
	rule := rules.AssetLockRule{}
	deal := twoTeamDeal([]model.Asset{player("1")}, nil)

	locked := &rules.Context{
		Consts: league.DefaultConstants(2026),
		Today:  date("2026-07-01"),
		Locks: map[string]model.AssetLock{
			"player:1": {DealID: "other-deal", ExpiresAt: "2026-07-10"},
		},
	}
	wantCode(t, rule.Validate(deal, locked), model.CodeAssetLocked)

	locked.AllowLockedByDealID = "other-deal"
	if err := rule.Validate(deal, locked); err != nil {
		t.Fatalf("own lock should not block: %v", err)
	}

	expired := &rules.Context{
		Consts: league.DefaultConstants(2026),
		Today:  date("2026-07-01"),
		Locks: map[string]model.AssetLock{
			"player:1": {DealID: "other-deal", ExpiresAt: "2026-06-01"},
		},
	}
	if err := rule.Validate(deal, expired); err != nil {
		t.Fatalf("expired lock should not block: %v", err)
	}
}

func TestOwnershipRule(t *testing.T) {
	st := league.NewMemoryStore()
	seedRoster(st,
		league.PlayerRecord{PlayerID: "1", TeamID: "LAL", Salary: money(10_000_000)},
		league.PlayerRecord{PlayerID: "2", TeamID: "MIA", Salary: money(5_000_000)},
	)
	st.SeedPick(league.PickRecord{PickID: "2028_R1_BOS", Year: 2028, Round: 1, OriginalOwner: "BOS", OwnerTeam: "BOS"})
	consts := league.DefaultConstants(2026)
	rule := rules.OwnershipRule{}

	ok := twoTeamDeal([]model.Asset{player("1")}, []model.Asset{pick("2028_R1_BOS")})
	if err := rule.Validate(ok, buildCtx(t, st, consts, ok, "2026-07-01")); err != nil {
		t.Fatalf("owned assets rejected: %v", err)
	}

	wrongTeam := twoTeamDeal([]model.Asset{player("2")}, nil)
	wantCode(t, rule.Validate(wrongTeam, buildCtx(t, st, consts, wrongTeam, "2026-07-01")), model.CodePlayerNotOwned)

	ghost := twoTeamDeal([]model.Asset{player("999")}, nil)
	wantCode(t, rule.Validate(ghost, buildCtx(t, st, consts, ghost, "2026-07-01")), model.CodePlayerNotOwned)

	stolenPick := twoTeamDeal([]model.Asset{pick("2028_R1_BOS")}, nil)
	wantCode(t, rule.Validate(stolenPick, buildCtx(t, st, consts, stolenPick, "2026-07-01")), model.CodePickNotOwned)
}

func TestOwnershipRuleSwaps(t *testing.T) {
	st := league.NewMemoryStore()
	st.SeedPick(league.PickRecord{PickID: "2028_R1_LAL", Year: 2028, Round: 1, OriginalOwner: "LAL", OwnerTeam: "LAL"})
	st.SeedPick(league.PickRecord{PickID: "2028_R1_BOS", Year: 2028, Round: 1, OriginalOwner: "BOS", OwnerTeam: "BOS"})
	st.SeedPick(league.PickRecord{PickID: "2029_R2_BOS", Year: 2029, Round: 2, OriginalOwner: "BOS", OwnerTeam: "BOS"})
	consts := league.DefaultConstants(2026)
	rule := rules.OwnershipRule{}

	swap := func(a, b string) model.Asset {
		return model.Asset{
			Kind: model.AssetSwap, PickIDA: a, PickIDB: b,
			SwapID: model.CanonicalSwapID(a, b),
		}
	}

	// Minting over an owned pick passes.
	mint := twoTeamDeal([]model.Asset{swap("2028_R1_LAL", "2028_R1_BOS")}, nil)
	if err := rule.Validate(mint, buildCtx(t, st, consts, mint, "2026-07-01")); err != nil {
		t.Fatalf("mintable swap rejected: %v", err)
	}

	// Minting over two foreign picks fails.
	foreign := model.CanonicalizeDeal(&model.Deal{
		Teams: []string{"MIA", "BOS"},
		Legs: map[string][]model.Asset{
			"MIA": {swap("2028_R1_LAL", "2028_R1_BOS")},
			"BOS": {},
		},
	})
	wantCode(t, rule.Validate(foreign, buildCtx(t, st, consts, foreign, "2026-07-01")), model.CodePickNotOwned)

	// Year/round mismatch fails.
	mismatch := twoTeamDeal([]model.Asset{swap("2028_R1_LAL", "2029_R2_BOS")}, nil)
	wantCode(t, rule.Validate(mismatch, buildCtx(t, st, consts, mismatch, "2026-07-01")), model.CodePickNotOwned)

	// Existing right owned elsewhere fails.
	st.SeedSwap(league.SwapRecord{
		SwapID:  model.CanonicalSwapID("2028_R1_LAL", "2028_R1_BOS"),
		PickIDA: "2028_R1_BOS", PickIDB: "2028_R1_LAL",
		OwnerTeam: "MIA", Active: true,
	})
	wantCode(t, rule.Validate(mint, buildCtx(t, st, consts, mint, "2026-07-01")), model.CodePickNotOwned)
}

func TestRosterLimitRule(t *testing.T) {
	st := league.NewMemoryStore()
	for i := 0; i < 15; i++ {
		st.SeedPlayer(league.PlayerRecord{PlayerID: "bos" + string(rune('a'+i)), TeamID: "BOS", Salary: money(1_000_000)})
	}
	st.SeedPlayer(league.PlayerRecord{PlayerID: "1", TeamID: "LAL", Salary: money(1_000_000)})
	consts := league.DefaultConstants(2026)
	rule := rules.RosterLimitRule{}

	// BOS is full; receiving one more player without sending any breaks the cap.
	over := twoTeamDeal([]model.Asset{player("1")}, []model.Asset{pick("2028_R1_BOS")})
	st.SeedPick(league.PickRecord{PickID: "2028_R1_BOS", Year: 2028, Round: 1, OriginalOwner: "BOS", OwnerTeam: "BOS"})
	wantCode(t, rule.Validate(over, buildCtx(t, st, consts, over, "2026-07-01")), model.CodeRosterLimit)

	// One out, one in keeps BOS at the limit.
	even := twoTeamDeal([]model.Asset{player("1")}, []model.Asset{player("bosa")})
	if err := rule.Validate(even, buildCtx(t, st, consts, even, "2026-07-01")); err != nil {
		t.Fatalf("even deal rejected: %v", err)
	}
}

func TestPlayerEligibilitySigningBan(t *testing.T) {
	st := league.NewMemoryStore()
	st.SeedPlayer(league.PlayerRecord{
		PlayerID: "1", TeamID: "LAL", Salary: money(10_000_000),
		SignedViaFreeAgency: true,
		LastActionType:      "SIGN_FREE_AGENT",
		LastActionDate:      "2026-10-01T09:00:00",
	})
	consts := league.DefaultConstants(2026)
	rule := rules.PlayerEligibilityRule{}
	deal := twoTeamDeal([]model.Asset{player("1")}, nil)

	// Inside the 90-day window and before Dec 15.
	err := rule.Validate(deal, buildCtx(t, st, consts, deal, "2026-11-01"))
	wantCode(t, err, model.CodeDealInvalidated)

	// Past the window but still before Dec 15: the Dec 15 floor holds.
	err = rule.Validate(deal, buildCtx(t, st, consts, deal, "2026-12-31"))
	if err != nil {
		t.Fatalf("after Dec 15 should pass: %v", err)
	}
	err = rule.Validate(deal, buildCtx(t, st, consts, deal, "2026-12-14"))
	wantCode(t, err, model.CodeDealInvalidated)
}

func TestPlayerEligibilityAggregationBan(t *testing.T) {
	st := league.NewMemoryStore()
	st.SeedPlayer(league.PlayerRecord{
		PlayerID: "1", TeamID: "LAL", Salary: money(10_000_000),
		AcquiredViaTrade: true, AcquiredDate: "2026-06-20",
	})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "2", TeamID: "LAL", Salary: money(5_000_000)})
	consts := league.DefaultConstants(2026)
	rule := rules.PlayerEligibilityRule{}

	together := twoTeamDeal([]model.Asset{player("1"), player("2")}, nil)
	wantCode(t, rule.Validate(together, buildCtx(t, st, consts, together, "2026-07-01")), model.CodeDealInvalidated)

	// Alone the recently traded player moves freely.
	alone := twoTeamDeal([]model.Asset{player("1")}, nil)
	if err := rule.Validate(alone, buildCtx(t, st, consts, alone, "2026-07-01")); err != nil {
		t.Fatalf("single player rejected: %v", err)
	}

	// Past the aggregation window the pair is fine.
	if err := rule.Validate(together, buildCtx(t, st, consts, together, "2026-09-15")); err != nil {
		t.Fatalf("aged acquisition rejected: %v", err)
	}
}

func seedPickYears(st *league.MemoryStore, team string, years ...int) {
	for _, y := range years {
		st.SeedPick(league.PickRecord{
			PickID: model.MakePickID(y, 1, team), Year: y, Round: 1,
			OriginalOwner: team, OwnerTeam: team,
		})
	}
}

func TestPickRulesYearWindow(t *testing.T) {
	st := league.NewMemoryStore()
	st.SeedPick(league.PickRecord{PickID: "2040_R1_LAL", Year: 2040, Round: 1, OriginalOwner: "LAL", OwnerTeam: "LAL"})
	consts := league.DefaultConstants(2026)
	rule := rules.PickRulesRule{}

	deal := twoTeamDeal([]model.Asset{pick("2040_R1_LAL")}, nil)
	wantCode(t, rule.Validate(deal, buildCtx(t, st, consts, deal, "2026-07-01")), model.CodePickTooFarInFuture)
}

func TestPickRulesStepien(t *testing.T) {
	st := league.NewMemoryStore()
	// Both teams hold their own firsts for 2027..2033.
	seedPickYears(st, "LAL", 2027, 2028, 2029, 2030, 2031, 2032, 2033)
	seedPickYears(st, "BOS", 2027, 2028, 2029, 2030, 2031, 2032, 2033)
	consts := league.DefaultConstants(2026)
	rule := rules.PickRulesRule{}

	// Sending two consecutive firsts leaves LAL empty in 2028 and 2029.
	bad := twoTeamDeal([]model.Asset{pick("2028_R1_LAL"), pick("2029_R1_LAL")}, nil)
	err := rule.Validate(bad, buildCtx(t, st, consts, bad, "2026-07-01"))
	wantCode(t, err, model.CodeStepienRuleViolation)

	// Alternating years always leave a first in one of each pair.
	ok := twoTeamDeal([]model.Asset{pick("2028_R1_LAL"), pick("2030_R1_LAL"), pick("2032_R1_LAL")}, nil)
	if err := rule.Validate(ok, buildCtx(t, st, consts, ok, "2026-07-01")); err != nil {
		t.Fatalf("alternating picks rejected: %v", err)
	}

	// An incoming first covers the gap even when both own firsts leave.
	covered := twoTeamDeal(
		[]model.Asset{pick("2028_R1_LAL"), pick("2029_R1_LAL")},
		[]model.Asset{pick("2028_R1_BOS")},
	)
	if err := rule.Validate(covered, buildCtx(t, st, consts, covered, "2026-07-01")); err != nil {
		t.Fatalf("covered gap rejected: %v", err)
	}
}

func salaryConsts() league.Constants {
	c := league.DefaultConstants(2026)
	c.EnableSalaryMatching = true
	return c
}

func TestSalaryMatchingCapRoom(t *testing.T) {
	st := league.NewMemoryStore()
	// BOS payroll 100M, far under the 154.647M cap.
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b1", TeamID: "BOS", Salary: money(100_000_000)})
	// LAL sends a 30M player, BOS sends 5M back.
	st.SeedPlayer(league.PlayerRecord{PlayerID: "l1", TeamID: "LAL", Salary: money(30_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b2", TeamID: "BOS", Salary: money(5_000_000)})
	rule := rules.SalaryMatchingRule{}

	deal := twoTeamDeal([]model.Asset{player("l1")}, []model.Asset{player("b2")})
	if err := rule.Validate(deal, buildCtx(t, st, salaryConsts(), deal, "2026-07-01")); err != nil {
		t.Fatalf("cap-room absorption rejected: %v", err)
	}
}

func TestSalaryMatchingSmallBand(t *testing.T) {
	st := league.NewMemoryStore()
	// BOS is over the cap but below the first apron.
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b1", TeamID: "BOS", Salary: money(160_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b2", TeamID: "BOS", Salary: money(6_000_000)})
	rule := rules.SalaryMatchingRule{}

	// 2 x 6M + 250k = 12.25M allowed in.
	okIn := league.PlayerRecord{PlayerID: "l1", TeamID: "LAL", Salary: money(12_000_000)}
	st.SeedPlayer(okIn)
	deal := twoTeamDeal([]model.Asset{player("l1")}, []model.Asset{player("b2")})
	if err := rule.Validate(deal, buildCtx(t, st, salaryConsts(), deal, "2026-07-01")); err != nil {
		t.Fatalf("within band rejected: %v", err)
	}

	st.SeedPlayer(league.PlayerRecord{PlayerID: "l2", TeamID: "LAL", Salary: money(13_000_000)})
	over := twoTeamDeal([]model.Asset{player("l2")}, []model.Asset{player("b2")})
	wantCode(t, rule.Validate(over, buildCtx(t, st, salaryConsts(), over, "2026-07-01")), model.CodeHardCapExceeded)
}

func TestSalaryMatchingOutgoingRequired(t *testing.T) {
	st := league.NewMemoryStore()
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b1", TeamID: "BOS", Salary: money(200_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "l1", TeamID: "LAL", Salary: money(5_000_000)})
	st.SeedPick(league.PickRecord{PickID: "2028_R1_BOS", Year: 2028, Round: 1, OriginalOwner: "BOS", OwnerTeam: "BOS"})
	rule := rules.SalaryMatchingRule{}

	// BOS takes salary in but sends only a pick: no free incoming salary.
	deal := twoTeamDeal([]model.Asset{player("l1")}, []model.Asset{pick("2028_R1_BOS")})
	wantCode(t, rule.Validate(deal, buildCtx(t, st, salaryConsts(), deal, "2026-07-01")), model.CodeHardCapExceeded)
}

func TestSalaryMatchingSecondApronOneForOne(t *testing.T) {
	st := league.NewMemoryStore()
	// BOS sits above the 207.824M second apron.
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b1", TeamID: "BOS", Salary: money(200_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b2", TeamID: "BOS", Salary: money(10_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "b3", TeamID: "BOS", Salary: money(2_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "l1", TeamID: "LAL", Salary: money(9_000_000)})
	st.SeedPlayer(league.PlayerRecord{PlayerID: "l2", TeamID: "LAL", Salary: money(1_000_000)})
	rule := rules.SalaryMatchingRule{}

	// One for one, incoming below outgoing: allowed.
	even := twoTeamDeal([]model.Asset{player("l1")}, []model.Asset{player("b2")})
	if err := rule.Validate(even, buildCtx(t, st, salaryConsts(), even, "2026-07-01")); err != nil {
		t.Fatalf("one-for-one under outgoing rejected: %v", err)
	}

	// Aggregating two outgoing players at the second apron: rejected.
	agg := twoTeamDeal([]model.Asset{player("l1")}, []model.Asset{player("b2"), player("b3")})
	wantCode(t, rule.Validate(agg, buildCtx(t, st, salaryConsts(), agg, "2026-07-01")), model.CodeHardCapExceeded)

	// Incoming above 1.00 x outgoing: rejected.
	st.SeedPlayer(league.PlayerRecord{PlayerID: "l3", TeamID: "LAL", Salary: money(11_000_000)})
	rich := twoTeamDeal([]model.Asset{player("l3")}, []model.Asset{player("b2")})
	wantCode(t, rule.Validate(rich, buildCtx(t, st, salaryConsts(), rich, "2026-07-01")), model.CodeHardCapExceeded)
}

func TestRegistryOrderingAndToggles(t *testing.T) {
	consts := league.DefaultConstants(2026)
	consts.EnablePickRules = true
	r := rules.DefaultRegistry(consts)

	all := r.Rules()
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Priority() > cur.Priority() ||
			(prev.Priority() == cur.Priority() && prev.ID() > cur.ID()) {
			t.Fatalf("rules out of order: %s before %s", prev.ID(), cur.ID())
		}
	}

	if !r.Enabled("pick_rules") {
		t.Fatal("pick_rules should be enabled by flag")
	}
	if r.Enabled("salary_matching") {
		t.Fatal("salary_matching should default to disabled")
	}

	r.SetEnabled("salary_matching", true)
	if !r.Enabled("salary_matching") {
		t.Fatal("SetEnabled did not toggle")
	}
	r.Unregister("salary_matching")
	if r.Enabled("salary_matching") {
		t.Fatal("unregistered rule still enabled")
	}
}

func TestValidateAllFailFastOrder(t *testing.T) {
	st := league.NewMemoryStore()
	consts := league.DefaultConstants(2026)
	consts.TradeDeadline = "2026-01-01"
	r := rules.DefaultRegistry(consts)

	// Deal is past deadline AND references an unowned player; deadline has
	// lower priority and must win.
	deal := twoTeamDeal([]model.Asset{player("ghost")}, nil)
	rc := buildCtx(t, st, consts, deal, "2026-07-01")
	wantCode(t, r.ValidateAll(deal, rc), model.CodeTradeDeadlinePassed)
}
