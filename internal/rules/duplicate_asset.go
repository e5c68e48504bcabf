package rules

import "github.com/courtside/trade-engine/internal/model"

// DuplicateAssetRule rejects deals where any asset key appears in more than
// one leg — nothing can be sent twice.
type DuplicateAssetRule struct{}

func (DuplicateAssetRule) ID() string    { return "duplicate_asset" }
func (DuplicateAssetRule) Priority() int { return 30 }

func (DuplicateAssetRule) Validate(deal *model.Deal, _ *Context) error {
	seen := make(map[string]string)
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			key := a.Key()
			if first, ok := seen[key]; ok {
				return model.NewTradeError(model.CodeDuplicateAsset, "duplicate asset in deal",
					map[string]any{
						"asset_key":        key,
						"first_sender":     first,
						"duplicate_sender": team,
					})
			}
			seen[key] = team
		}
	}
	return nil
}
