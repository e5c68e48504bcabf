package league

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Constants are the league rule figures consumed by the rules engine. They
// are constructed per season, never a process-wide singleton.
type Constants struct {
	SalaryCap   decimal.Decimal `json:"salary_cap"`
	FirstApron  decimal.Decimal `json:"first_apron"`
	SecondApron decimal.Decimal `json:"second_apron"`

	// Salary-matching bands for teams over the cap but below the first apron.
	MatchSmallOutMax decimal.Decimal `json:"match_small_out_max"`
	MatchMidOutMax   decimal.Decimal `json:"match_mid_out_max"`
	MatchMidAdd      decimal.Decimal `json:"match_mid_add"`
	MatchLargeMult   decimal.Decimal `json:"match_large_mult"`
	MatchBuffer      decimal.Decimal `json:"match_buffer"`
	FirstApronMult   decimal.Decimal `json:"first_apron_mult"`
	SecondApronMult  decimal.Decimal `json:"second_apron_mult"`

	// TradeDeadline is an ISO calendar date; empty disables the deadline rule.
	TradeDeadline string `json:"trade_deadline,omitempty"`

	RosterLimit       int `json:"roster_limit"`
	DraftYear         int `json:"draft_year"`
	SeasonYear        int `json:"season_year"`
	MaxPickYearsAhead int `json:"max_pick_years_ahead"`
	StepienLookahead  int `json:"stepien_lookahead"`

	NewSignBanDays     int `json:"new_sign_ban_days"`
	AggregationBanDays int `json:"aggregation_ban_days"`

	// TeamIDs is the authoritative set of valid franchises.
	TeamIDs []string `json:"team_ids"`

	// Feature flags for rules disabled by default.
	EnablePickRules      bool `json:"enable_pick_rules"`
	EnableEligibility    bool `json:"enable_eligibility"`
	EnableSalaryMatching bool `json:"enable_salary_matching"`
}

// DefaultConstants returns the baseline rule figures.
func DefaultConstants(draftYear int) Constants {
	return Constants{
		SalaryCap:          decimal.NewFromInt(154_647_000),
		FirstApron:         decimal.NewFromInt(195_945_000),
		SecondApron:        decimal.NewFromInt(207_824_000),
		MatchSmallOutMax:   decimal.NewFromInt(7_500_000),
		MatchMidOutMax:     decimal.NewFromInt(29_000_000),
		MatchMidAdd:        decimal.NewFromInt(7_500_000),
		MatchLargeMult:     decimal.NewFromFloat(1.25),
		MatchBuffer:        decimal.NewFromInt(250_000),
		FirstApronMult:     decimal.NewFromFloat(1.10),
		SecondApronMult:    decimal.NewFromFloat(1.00),
		RosterLimit:        15,
		DraftYear:          draftYear,
		SeasonYear:         draftYear,
		MaxPickYearsAhead:  7,
		StepienLookahead:   7,
		NewSignBanDays:     90,
		AggregationBanDays: 60,
	}
}

// HasTeam reports whether a team id is a valid franchise. An empty TeamIDs
// set disables the check, for stores seeded ad hoc in tests.
func (c Constants) HasTeam(teamID string) bool {
	if len(c.TeamIDs) == 0 {
		return true
	}
	for _, t := range c.TeamIDs {
		if t == teamID {
			return true
		}
	}
	return false
}

// Validate rejects configurations that would silently produce permissive or
// inverted salary ceilings.
func (c Constants) Validate() error {
	if !c.SalaryCap.IsPositive() {
		return fmt.Errorf("league: salary cap must be positive, got %s", c.SalaryCap)
	}
	if c.FirstApron.LessThan(c.SalaryCap) {
		return fmt.Errorf("league: first apron %s below salary cap %s", c.FirstApron, c.SalaryCap)
	}
	if c.SecondApron.LessThan(c.FirstApron) {
		return fmt.Errorf("league: second apron %s below first apron %s", c.SecondApron, c.FirstApron)
	}
	for name, v := range map[string]decimal.Decimal{
		"match_small_out_max": c.MatchSmallOutMax,
		"match_mid_out_max":   c.MatchMidOutMax,
		"match_mid_add":       c.MatchMidAdd,
		"match_large_mult":    c.MatchLargeMult,
		"first_apron_mult":    c.FirstApronMult,
		"second_apron_mult":   c.SecondApronMult,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("league: %s must be positive, got %s", name, v)
		}
	}
	if c.MatchBuffer.IsNegative() {
		return fmt.Errorf("league: match_buffer must not be negative, got %s", c.MatchBuffer)
	}
	if c.RosterLimit <= 0 {
		return fmt.Errorf("league: roster limit must be positive, got %d", c.RosterLimit)
	}
	if c.DraftYear <= 0 {
		return fmt.Errorf("league: draft year must be set, got %d", c.DraftYear)
	}
	return nil
}
