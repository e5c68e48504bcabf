package rules

import (
	"time"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
)

// farPast is the sentinel for unparsable player dates. Failing open here is
// deliberate: a record with a broken date must not freeze a player forever.
var farPast = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// parsePlayerDate reads the first 10 characters of a date-or-datetime string
// ("2026-01-05T10:11:12" parses as 2026-01-05).
func parsePlayerDate(value string) time.Time {
	if len(value) >= 10 {
		if d, err := time.Parse(model.DateLayout, value[:10]); err == nil {
			return d
		}
	}
	return farPast
}

// PlayerEligibilityRule enforces the trade bans tied to how a player joined
// their team: a fresh free-agency signing cannot be traded inside the signing
// ban window (and never before Dec 15 of the season), and two players each
// acquired by trade within the aggregation window cannot be packaged together
// by the same sender.
type PlayerEligibilityRule struct{}

func (PlayerEligibilityRule) ID() string    { return "player_eligibility" }
func (PlayerEligibilityRule) Priority() int { return 70 }

func (r PlayerEligibilityRule) Validate(deal *model.Deal, rc *Context) error {
	if err := r.checkSigningBans(deal, rc); err != nil {
		return err
	}
	return r.checkAggregationBans(deal, rc)
}

func (PlayerEligibilityRule) checkSigningBans(deal *model.Deal, rc *Context) error {
	banDays := rc.Consts.NewSignBanDays
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPlayer {
				continue
			}
			p, ok := rc.Players[a.PlayerID]
			if !ok {
				continue
			}
			recentSigning := p.LastActionType == "SIGN_FREE_AGENT" || p.LastActionType == "RE_SIGN_OR_EXTEND"
			if !recentSigning && !p.SignedViaFreeAgency {
				continue
			}
			dateValue := p.LastActionDate
			if dateValue == "" {
				dateValue = p.SignedDate
			}
			signed := parsePlayerDate(dateValue)

			seasonYear := rc.Consts.SeasonYear
			if seasonYear <= 0 {
				seasonYear = rc.Today.Year()
			}
			dec15 := time.Date(seasonYear, time.December, 15, 0, 0, 0, 0, time.UTC)
			bannedUntil := signed.AddDate(0, 0, banDays)
			if dec15.After(bannedUntil) {
				bannedUntil = dec15
			}
			if rc.Today.Before(bannedUntil) {
				return model.NewTradeError(model.CodeDealInvalidated, "player recently signed or re-signed",
					map[string]any{
						"rule":         "player_eligibility",
						"team_id":      team,
						"player_id":    a.PlayerID,
						"reason":       "recent_contract_signing",
						"trade_date":   rc.Today.Format(model.DateLayout),
						"signed_date":  signed.Format(model.DateLayout),
						"banned_until": bannedUntil.Format(model.DateLayout),
						"ban_days":     banDays,
					})
			}
		}
	}
	return nil
}

func (PlayerEligibilityRule) checkAggregationBans(deal *model.Deal, rc *Context) error {
	banDays := rc.Consts.AggregationBanDays
	for _, team := range deal.Teams {
		var outgoing []*league.PlayerRecord
		var outgoingIDs []string
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPlayer {
				continue
			}
			if p, ok := rc.Players[a.PlayerID]; ok {
				outgoing = append(outgoing, p)
				outgoingIDs = append(outgoingIDs, a.PlayerID)
			}
		}
		if len(outgoing) < 2 {
			continue
		}
		for i, p := range outgoing {
			if !p.AcquiredViaTrade {
				continue
			}
			acquired := parsePlayerDate(p.AcquiredDate)
			bannedUntil := acquired.AddDate(0, 0, banDays)
			if rc.Today.Before(bannedUntil) {
				return model.NewTradeError(model.CodeDealInvalidated, "recently traded players cannot be aggregated",
					map[string]any{
						"rule":          "player_eligibility",
						"team_id":       team,
						"player_id":     outgoingIDs[i],
						"reason":        "aggregation_ban",
						"trade_date":    rc.Today.Format(model.DateLayout),
						"acquired_date": acquired.Format(model.DateLayout),
						"banned_until":  bannedUntil.Format(model.DateLayout),
					})
			}
		}
	}
	return nil
}
