package rules

import "github.com/courtside/trade-engine/internal/model"

// RosterLimitRule rejects deals that would leave any participating team above
// the league roster limit after the trade settles.
type RosterLimitRule struct{}

func (RosterLimitRule) ID() string    { return "roster_limit" }
func (RosterLimitRule) Priority() int { return 60 }

func (RosterLimitRule) Validate(deal *model.Deal, rc *Context) error {
	out := make(map[string]int, len(deal.Teams))
	in := make(map[string]int, len(deal.Teams))

	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPlayer {
				continue
			}
			receiver, err := model.ResolveReceiver(deal, team, a)
			if err != nil {
				return err
			}
			out[team]++
			in[receiver]++
		}
	}

	for _, team := range deal.Teams {
		after := rc.RosterCounts[team] - out[team] + in[team]
		if after > rc.Consts.RosterLimit {
			return model.NewTradeError(model.CodeRosterLimit, "roster limit exceeded",
				map[string]any{
					"team_id": team,
					"count":   after,
					"limit":   rc.Consts.RosterLimit,
				})
		}
	}
	return nil
}
