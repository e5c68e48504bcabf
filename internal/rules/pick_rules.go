package rules

import "github.com/courtside/trade-engine/internal/model"

// PickRulesRule enforces draft-pick trading windows. No pick may sit more
// than MaxPickYearsAhead years past the current draft year, and after
// simulating post-trade ownership no team may be left with zero first-round
// picks in two consecutive draft years inside the Stepien lookahead window.
// Holding any first-round pick for a year counts, regardless of its origin.
type PickRulesRule struct{}

func (PickRulesRule) ID() string    { return "pick_rules" }
func (PickRulesRule) Priority() int { return 80 }

func (r PickRulesRule) Validate(deal *model.Deal, rc *Context) error {
	draftYear := rc.Consts.DraftYear
	if draftYear <= 0 {
		return model.NewTradeError(model.CodeDealInvalidated, "missing league draft year",
			map[string]any{"rule": "pick_rules", "reason": "missing_draft_year"})
	}

	maxAhead := rc.Consts.MaxPickYearsAhead
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPick {
				continue
			}
			pick, ok := rc.Picks[a.PickID]
			if !ok {
				return model.NewTradeError(model.CodeDealInvalidated, "pick not found",
					map[string]any{"rule": "pick_rules", "pick_id": a.PickID, "reason": "missing_pick"})
			}
			if pick.Year > draftYear+maxAhead {
				return model.NewTradeError(model.CodePickTooFarInFuture, "pick too far in future",
					map[string]any{
						"pick_id":              a.PickID,
						"year":                 pick.Year,
						"draft_year":           draftYear,
						"max_pick_years_ahead": maxAhead,
					})
			}
		}
	}

	return r.checkStepien(deal, rc, draftYear)
}

func (PickRulesRule) checkStepien(deal *model.Deal, rc *Context, draftYear int) error {
	lookahead := rc.Consts.StepienLookahead
	if lookahead <= 0 {
		return nil
	}

	// Simulate ownership after the trade.
	ownerAfter := make(map[string]string, len(rc.Picks))
	for id, pick := range rc.Picks {
		ownerAfter[id] = pick.OwnerTeam
	}
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPick {
				continue
			}
			receiver, err := model.ResolveReceiver(deal, team, a)
			if err != nil {
				return err
			}
			ownerAfter[a.PickID] = receiver
		}
	}

	// Years beyond the pick data would misread as "no picks" and trip false
	// violations on older saves, so clamp the window to the data we have.
	maxDataYear := 0
	for _, pick := range rc.Picks {
		if pick.Round == 1 && pick.Year > maxDataYear {
			maxDataYear = pick.Year
		}
	}

	start := draftYear + 1
	end := draftYear + lookahead
	if maxDataYear > 0 && end > maxDataYear-1 {
		end = maxDataYear - 1
	}

	for _, team := range deal.Teams {
		for year := start; year <= end; year++ {
			if countFirstRounders(rc, ownerAfter, team, year) == 0 &&
				countFirstRounders(rc, ownerAfter, team, year+1) == 0 {
				return model.NewTradeError(model.CodeStepienRuleViolation,
					"team would hold no first-round picks in consecutive years",
					map[string]any{
						"team_id":   team,
						"year":      year,
						"next_year": year + 1,
						"lookahead": lookahead,
					})
			}
		}
	}
	return nil
}

func countFirstRounders(rc *Context, ownerAfter map[string]string, team string, year int) int {
	count := 0
	for id, pick := range rc.Picks {
		if pick.Round == 1 && pick.Year == year && ownerAfter[id] == team {
			count++
		}
	}
	return count
}
