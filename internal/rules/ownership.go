package rules

import "github.com/courtside/trade-engine/internal/model"

// OwnershipRule verifies that every asset is actually owned by the leg that
// sends it: a player's team-of-record must be the sender, and a pick, swap
// right, or fixed asset's current owner must be the sender. Swap assets
// additionally require both underlying picks to exist and match year and
// round, and the swap id to be canonical for the pair.
type OwnershipRule struct{}

func (OwnershipRule) ID() string    { return "ownership" }
func (OwnershipRule) Priority() int { return 50 }

func (OwnershipRule) Validate(deal *model.Deal, rc *Context) error {
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			switch a.Kind {
			case model.AssetPlayer:
				p, ok := rc.Players[a.PlayerID]
				if !ok {
					return model.NewTradeError(model.CodePlayerNotOwned, "player not found on any roster",
						map[string]any{"player_id": a.PlayerID, "team_id": team})
				}
				if p.TeamID != team {
					return model.NewTradeError(model.CodePlayerNotOwned, "player not owned by team",
						map[string]any{
							"player_id":    a.PlayerID,
							"team_id":      team,
							"current_team": p.TeamID,
						})
				}
			case model.AssetPick:
				pick, ok := rc.Picks[a.PickID]
				if !ok {
					return model.NewTradeError(model.CodePickNotOwned, "pick not found",
						map[string]any{"pick_id": a.PickID, "team_id": team})
				}
				if pick.OwnerTeam != team {
					return model.NewTradeError(model.CodePickNotOwned, "pick not owned by team",
						map[string]any{
							"pick_id":    a.PickID,
							"team_id":    team,
							"owner_team": pick.OwnerTeam,
						})
				}
			case model.AssetSwap:
				if err := validateSwap(a, team, rc); err != nil {
					return err
				}
			case model.AssetFixed:
				f, ok := rc.Fixed[a.AssetID]
				if !ok {
					return model.NewTradeError(model.CodePickNotOwned, "fixed asset not found",
						map[string]any{"asset_id": a.AssetID, "team_id": team})
				}
				if f.OwnerTeam != team {
					return model.NewTradeError(model.CodePickNotOwned, "fixed asset not owned by team",
						map[string]any{
							"asset_id":   a.AssetID,
							"team_id":    team,
							"owner_team": f.OwnerTeam,
						})
				}
			}
		}
	}
	return nil
}

func validateSwap(a model.Asset, team string, rc *Context) error {
	if expected := model.CanonicalSwapID(a.PickIDA, a.PickIDB); a.SwapID != expected {
		return model.NewTradeError(model.CodePickNotOwned, "swap id must be canonical for the pick pair",
			map[string]any{
				"swap_id":   a.SwapID,
				"expected":  expected,
				"pick_id_a": a.PickIDA,
				"pick_id_b": a.PickIDB,
			})
	}

	pickA, okA := rc.Picks[a.PickIDA]
	pickB, okB := rc.Picks[a.PickIDB]
	if !okA || !okB {
		return model.NewTradeError(model.CodePickNotOwned, "swap picks must exist",
			map[string]any{"swap_id": a.SwapID, "pick_id_a": a.PickIDA, "pick_id_b": a.PickIDB})
	}
	if pickA.Year != pickB.Year || pickA.Round != pickB.Round {
		return model.NewTradeError(model.CodePickNotOwned, "swap picks must match year and round",
			map[string]any{
				"swap_id": a.SwapID,
				"pick_a":  map[string]any{"year": pickA.Year, "round": pickA.Round},
				"pick_b":  map[string]any{"year": pickB.Year, "round": pickB.Round},
			})
	}

	if sw, ok := rc.Swaps[a.SwapID]; ok {
		if sw.OwnerTeam != team {
			return model.NewTradeError(model.CodePickNotOwned, "swap right not owned by team",
				map[string]any{"swap_id": a.SwapID, "team_id": team, "owner_team": sw.OwnerTeam})
		}
		return nil
	}

	// No existing right: the sender may mint one only over a pick it owns.
	if pickA.OwnerTeam != team && pickB.OwnerTeam != team {
		return model.NewTradeError(model.CodePickNotOwned, "swap right cannot be created by team",
			map[string]any{
				"swap_id":      a.SwapID,
				"team_id":      team,
				"pick_owner_a": pickA.OwnerTeam,
				"pick_owner_b": pickB.OwnerTeam,
			})
	}
	return nil
}
