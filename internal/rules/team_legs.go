package rules

import "github.com/courtside/trade-engine/internal/model"

// TeamLegsRule checks the deal's team structure: every team is a valid
// franchise, the legs key set equals the team set, and explicit receivers are
// participating teams other than the sender. Deals of three or more teams
// must name a receiver on every asset.
type TeamLegsRule struct{}

func (TeamLegsRule) ID() string    { return "team_legs" }
func (TeamLegsRule) Priority() int { return 20 }

func (TeamLegsRule) Validate(deal *model.Deal, rc *Context) error {
	inDeal := make(map[string]bool, len(deal.Teams))
	for _, team := range deal.Teams {
		if !rc.Consts.HasTeam(team) {
			return model.NewTradeError(model.CodeInvalidTeam, "unknown team in deal",
				map[string]any{"team_id": team})
		}
		inDeal[team] = true
	}

	if len(deal.Legs) != len(deal.Teams) {
		return model.NewTradeError(model.CodeInvalidTeam, "deal legs must match deal teams",
			map[string]any{"teams": deal.Teams})
	}
	for team := range deal.Legs {
		if !inDeal[team] {
			return model.NewTradeError(model.CodeInvalidTeam, "legs entry for team outside deal",
				map[string]any{"team_id": team})
		}
	}

	for team, assets := range deal.Legs {
		for _, a := range assets {
			if a.ToTeam == "" {
				if len(deal.Teams) >= 3 {
					return model.NewTradeError(model.CodeMissingToTeam,
						"missing to_team for multi-team deal asset",
						map[string]any{"team_id": team, "asset_key": a.Key()})
				}
				continue
			}
			if !inDeal[a.ToTeam] {
				return model.NewTradeError(model.CodeInvalidTeam, "receiver team not in deal",
					map[string]any{"team_id": team, "to_team": a.ToTeam, "asset_key": a.Key()})
			}
			if a.ToTeam == team {
				return model.NewTradeError(model.CodeInvalidTeam, "receiver team cannot match sender",
					map[string]any{"team_id": team, "asset_key": a.Key()})
			}
		}
	}
	return nil
}
