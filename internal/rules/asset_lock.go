package rules

import "github.com/courtside/trade-engine/internal/model"

// AssetLockRule rejects deals referencing an asset locked by another active
// committed deal. Expired locks are ignored, and a deal re-verifying itself
// may pass its own locks via Context.AllowLockedByDealID.
type AssetLockRule struct{}

func (AssetLockRule) ID() string    { return "asset_lock" }
func (AssetLockRule) Priority() int { return 40 }

func (AssetLockRule) Validate(deal *model.Deal, rc *Context) error {
	for _, assets := range deal.Legs {
		for _, a := range assets {
			key := a.Key()
			lock, ok := rc.Locks[key]
			if !ok {
				continue
			}
			if lock.Expired(rc.Today) {
				continue
			}
			if rc.AllowLockedByDealID != "" && lock.DealID == rc.AllowLockedByDealID {
				continue
			}
			return model.NewTradeError(model.CodeAssetLocked, "asset is locked by another deal",
				map[string]any{
					"asset_key":  key,
					"deal_id":    lock.DealID,
					"expires_at": lock.ExpiresAt,
				})
		}
	}
	return nil
}
