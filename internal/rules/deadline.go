package rules

import (
	"github.com/courtside/trade-engine/internal/model"
)

// DeadlineRule rejects deals evaluated after the league trade deadline. The
// comparison is day-granular, so a deal evaluated ON the deadline day still
// passes. An empty or unparsable deadline disables the check.
type DeadlineRule struct{}

func (DeadlineRule) ID() string    { return "deadline" }
func (DeadlineRule) Priority() int { return 10 }

func (DeadlineRule) Validate(_ *model.Deal, rc *Context) error {
	if model.PastDate(rc.Today, rc.Consts.TradeDeadline) {
		return model.NewTradeError(model.CodeTradeDeadlinePassed, "trade deadline has passed",
			map[string]any{
				"current_date": rc.Today.Format(model.DateLayout),
				"deadline":     rc.Consts.TradeDeadline,
			})
	}
	return nil
}
