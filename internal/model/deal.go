// Package model defines the core domain types shared across the trade engine:
// deals, assets, committed agreements, asset locks, and the trade error
// taxonomy. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AssetKind discriminates the tradeable asset variants.
type AssetKind string

const (
	AssetPlayer AssetKind = "player"
	AssetPick   AssetKind = "pick"
	AssetSwap   AssetKind = "swap"
	AssetFixed  AssetKind = "fixed_asset"
)

// Asset is one tradeable unit inside a deal leg. Exactly one of the natural
// id fields is set, depending on Kind. ToTeam is the explicit receiving team;
// it may be empty for two-team deals where the receiver is implied.
type Asset struct {
	Kind     AssetKind `json:"kind"`
	PlayerID string    `json:"player_id,omitempty"`
	PickID   string    `json:"pick_id,omitempty"`
	SwapID   string    `json:"swap_id,omitempty"`
	PickIDA  string    `json:"pick_id_a,omitempty"`
	PickIDB  string    `json:"pick_id_b,omitempty"`
	AssetID  string    `json:"asset_id,omitempty"`
	ToTeam   string    `json:"to_team,omitempty"`
}

// Key returns the asset's natural key, used for locks, duplicate detection,
// and ownership snapshots: "player:<id>", "pick:<id>", "swap:<id>",
// "fixed:<id>".
func (a Asset) Key() string {
	switch a.Kind {
	case AssetPlayer:
		return "player:" + a.PlayerID
	case AssetPick:
		return "pick:" + a.PickID
	case AssetSwap:
		return "swap:" + a.SwapID
	default:
		return "fixed:" + a.AssetID
	}
}

// NaturalID returns the opaque id for the asset's kind.
func (a Asset) NaturalID() string {
	switch a.Kind {
	case AssetPlayer:
		return a.PlayerID
	case AssetPick:
		return a.PickID
	case AssetSwap:
		return a.SwapID
	default:
		return a.AssetID
	}
}

// Deal is a proposed or committed multi-team asset exchange. Legs maps each
// participating team to the assets that team sends; every team in Teams must
// have a legs entry, even if it sends nothing.
type Deal struct {
	Teams []string           `json:"teams"`
	Legs  map[string][]Asset `json:"legs"`
	Meta  map[string]any     `json:"meta,omitempty"`
}

// CanonicalSwapID derives the canonical swap id for a pick pair. The pair is
// sorted so the id is independent of argument order.
func CanonicalSwapID(pickIDA, pickIDB string) string {
	a, b := pickIDA, pickIDB
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("SWAP_%s__%s", a, b)
}

func normalizeTeamID(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", NewTradeError(CodeInvalidTeam, "empty team id", map[string]any{"team_id": raw})
	}
	return t, nil
}

// ParseDeal decodes and structurally validates a deal wire payload. It does
// not check league legality; that is the rules engine's job. Errors are
// TradeErrors identifying the offending payload fragment.
func ParseDeal(payload []byte) (*Deal, error) {
	var raw struct {
		Teams []string           `json:"teams"`
		Legs  map[string][]Asset `json:"legs"`
		Meta  map[string]any     `json:"meta"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, WrapTradeError(CodeDealInvalidated, "malformed deal payload", nil, err)
	}
	return buildDeal(raw.Teams, raw.Legs, raw.Meta)
}

func buildDeal(rawTeams []string, rawLegs map[string][]Asset, meta map[string]any) (*Deal, error) {
	if len(rawTeams) < 2 {
		return nil, NewTradeError(CodeDealInvalidated, "deal must include at least two teams",
			map[string]any{"teams": rawTeams})
	}

	teams := make([]string, 0, len(rawTeams))
	seen := make(map[string]bool, len(rawTeams))
	for _, t := range rawTeams {
		tid, err := normalizeTeamID(t)
		if err != nil {
			return nil, err
		}
		if seen[tid] {
			return nil, NewTradeError(CodeDealInvalidated, "duplicate team in deal",
				map[string]any{"team_id": tid})
		}
		seen[tid] = true
		teams = append(teams, tid)
	}

	normLegs := make(map[string][]Asset, len(rawLegs))
	for t, assets := range rawLegs {
		tid, err := normalizeTeamID(t)
		if err != nil {
			return nil, err
		}
		normLegs[tid] = assets
	}
	if len(normLegs) != len(teams) {
		return nil, NewTradeError(CodeDealInvalidated, "deal legs must match deal teams",
			map[string]any{"teams": teams, "legs": legKeys(normLegs)})
	}

	legs := make(map[string][]Asset, len(teams))
	for _, tid := range teams {
		rawAssets, ok := normLegs[tid]
		if !ok {
			return nil, NewTradeError(CodeDealInvalidated, "missing legs entry for team",
				map[string]any{"team_id": tid})
		}
		assets := make([]Asset, 0, len(rawAssets))
		for _, a := range rawAssets {
			parsed, err := parseAsset(a, tid)
			if err != nil {
				return nil, err
			}
			assets = append(assets, parsed)
		}
		legs[tid] = assets
	}

	if len(teams) >= 3 {
		for tid, assets := range legs {
			for _, a := range assets {
				if a.ToTeam == "" {
					return nil, NewTradeError(CodeMissingToTeam,
						"missing to_team for multi-team deal asset",
						map[string]any{"team_id": tid, "asset_key": a.Key()})
				}
			}
		}
	}

	if meta == nil {
		meta = map[string]any{}
	}
	return &Deal{Teams: teams, Legs: legs, Meta: meta}, nil
}

func parseAsset(raw Asset, senderTeam string) (Asset, error) {
	a := Asset{Kind: AssetKind(strings.ToLower(string(raw.Kind)))}
	if raw.ToTeam != "" {
		to, err := normalizeTeamID(raw.ToTeam)
		if err != nil {
			return Asset{}, err
		}
		a.ToTeam = to
	}
	switch a.Kind {
	case AssetPlayer:
		if strings.TrimSpace(raw.PlayerID) == "" {
			return Asset{}, NewTradeError(CodeDealInvalidated, "missing player_id in asset",
				map[string]any{"team_id": senderTeam})
		}
		a.PlayerID = strings.TrimSpace(raw.PlayerID)
	case AssetPick:
		if strings.TrimSpace(raw.PickID) == "" {
			return Asset{}, NewTradeError(CodeDealInvalidated, "missing pick_id in asset",
				map[string]any{"team_id": senderTeam})
		}
		a.PickID = strings.TrimSpace(raw.PickID)
		if _, err := ParsePickID(a.PickID); err != nil {
			return Asset{}, WrapTradeError(CodeDealInvalidated, "invalid pick id",
				map[string]any{"team_id": senderTeam, "pick_id": a.PickID}, err)
		}
	case AssetSwap:
		if strings.TrimSpace(raw.PickIDA) == "" || strings.TrimSpace(raw.PickIDB) == "" {
			return Asset{}, NewTradeError(CodeDealInvalidated, "swap asset requires pick_id_a and pick_id_b",
				map[string]any{"team_id": senderTeam})
		}
		a.PickIDA = strings.TrimSpace(raw.PickIDA)
		a.PickIDB = strings.TrimSpace(raw.PickIDB)
		for _, id := range []string{a.PickIDA, a.PickIDB} {
			if _, err := ParsePickID(id); err != nil {
				return Asset{}, WrapTradeError(CodeDealInvalidated, "invalid pick id",
					map[string]any{"team_id": senderTeam, "pick_id": id}, err)
			}
		}
		a.SwapID = strings.TrimSpace(raw.SwapID)
		if a.SwapID == "" {
			a.SwapID = CanonicalSwapID(a.PickIDA, a.PickIDB)
		}
	case AssetFixed:
		if strings.TrimSpace(raw.AssetID) == "" {
			return Asset{}, NewTradeError(CodeDealInvalidated, "missing asset_id in asset",
				map[string]any{"team_id": senderTeam})
		}
		a.AssetID = strings.TrimSpace(raw.AssetID)
	default:
		return Asset{}, NewTradeError(CodeDealInvalidated, "unknown asset kind",
			map[string]any{"team_id": senderTeam, "kind": string(raw.Kind)})
	}
	return a, nil
}

func legKeys(legs map[string][]Asset) []string {
	keys := make([]string, 0, len(legs))
	for k := range legs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func assetKindRank(k AssetKind) int {
	switch k {
	case AssetPlayer:
		return 0
	case AssetPick:
		return 1
	case AssetSwap:
		return 2
	default:
		return 3
	}
}

// CanonicalizeDeal returns the deterministic canonical form of a deal: teams
// sorted, each leg's assets sorted by (kind, to_team, natural id). The result
// hashes identically regardless of authoring order, and canonicalizing twice
// is a no-op. Legality is not checked here.
func CanonicalizeDeal(d *Deal) *Deal {
	teams := append([]string(nil), d.Teams...)
	sort.Strings(teams)

	legs := make(map[string][]Asset, len(d.Legs))
	for tid, assets := range d.Legs {
		sorted := append([]Asset(nil), assets...)
		sort.Slice(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if ra, rb := assetKindRank(a.Kind), assetKindRank(b.Kind); ra != rb {
				return ra < rb
			}
			if a.ToTeam != b.ToTeam {
				return a.ToTeam < b.ToTeam
			}
			return a.NaturalID() < b.NaturalID()
		})
		legs[tid] = sorted
	}

	meta := make(map[string]any, len(d.Meta))
	for k, v := range d.Meta {
		meta[k] = v
	}
	return &Deal{Teams: teams, Legs: legs, Meta: meta}
}

// SerializeDeal encodes a deal to its wire form. Empty asset fields are
// omitted, so ParseDeal(SerializeDeal(d)) round-trips exactly. Map keys are
// emitted in sorted order by encoding/json, so serializing a canonical deal
// is deterministic.
func SerializeDeal(d *Deal) ([]byte, error) {
	out := struct {
		Teams []string           `json:"teams"`
		Legs  map[string][]Asset `json:"legs"`
		Meta  map[string]any     `json:"meta,omitempty"`
	}{Teams: d.Teams, Legs: d.Legs}
	if len(d.Meta) > 0 {
		out.Meta = d.Meta
	}
	return json.Marshal(out)
}

// ResolveReceiver determines which team receives an asset: the explicit
// to_team when present, otherwise the other team of a two-team deal. A
// missing receiver on a larger deal is rejected at parse time; this re-check
// is the safety net for deals built programmatically.
func ResolveReceiver(d *Deal, senderTeam string, a Asset) (string, error) {
	if a.ToTeam != "" {
		return a.ToTeam, nil
	}
	if len(d.Teams) == 2 {
		for _, t := range d.Teams {
			if t != senderTeam {
				return t, nil
			}
		}
	}
	return "", NewTradeError(CodeMissingToTeam, "missing to_team for multi-team deal asset",
		map[string]any{"team_id": senderTeam, "asset_key": a.Key()})
}
