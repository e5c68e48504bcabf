package rules

import (
	"sort"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
)

// Rule is one independent trade validator. Validate returns nil on success or
// a *model.TradeError describing the violation. Rules are pure over the
// context snapshot: fast, non-blocking, no mutation.
type Rule interface {
	ID() string
	Priority() int
	Validate(deal *model.Deal, rc *Context) error
}

// Registry holds the rule set with explicit ordering and enable metadata.
type Registry struct {
	rules   map[string]Rule
	enabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:   make(map[string]Rule),
		enabled: make(map[string]bool),
	}
}

// Register adds or replaces a rule.
func (r *Registry) Register(rule Rule, enabled bool) {
	r.rules[rule.ID()] = rule
	r.enabled[rule.ID()] = enabled
}

// Unregister removes a rule.
func (r *Registry) Unregister(ruleID string) {
	delete(r.rules, ruleID)
	delete(r.enabled, ruleID)
}

// SetEnabled toggles a registered rule.
func (r *Registry) SetEnabled(ruleID string, enabled bool) {
	if _, ok := r.rules[ruleID]; ok {
		r.enabled[ruleID] = enabled
	}
}

// Enabled reports whether a rule is registered and enabled.
func (r *Registry) Enabled(ruleID string) bool {
	return r.enabled[ruleID]
}

// Rules returns all registered rules sorted by (priority, id).
func (r *Registry) Rules() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// ValidateAll runs every enabled rule in ascending (priority, id) order and
// stops at the first violation.
func (r *Registry) ValidateAll(deal *model.Deal, rc *Context) error {
	for _, rule := range r.Rules() {
		if !r.enabled[rule.ID()] {
			continue
		}
		if err := rule.Validate(deal, rc); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry builds the builtin rule set. The pick, eligibility, and
// salary-matching rules ship disabled and are switched on through league
// configuration flags.
func DefaultRegistry(consts league.Constants) *Registry {
	r := NewRegistry()
	r.Register(DeadlineRule{}, true)
	r.Register(TeamLegsRule{}, true)
	r.Register(DuplicateAssetRule{}, true)
	r.Register(AssetLockRule{}, true)
	r.Register(OwnershipRule{}, true)
	r.Register(RosterLimitRule{}, true)
	r.Register(PlayerEligibilityRule{}, consts.EnableEligibility)
	r.Register(PickRulesRule{}, consts.EnablePickRules)
	r.Register(SalaryMatchingRule{}, consts.EnableSalaryMatching)
	return r
}
