package rules

import (
	"github.com/shopspring/decimal"

	"github.com/courtside/trade-engine/internal/model"
)

// Apron status labels reported in salary-matching rejections.
const (
	apronStatusBelow  = "BELOW_FIRST_APRON"
	apronStatusFirst  = "FIRST_APRON"
	apronStatusSecond = "SECOND_APRON"
)

// teamTradeTotals aggregates the player salary moving out of and into one
// team's leg of a deal.
type teamTradeTotals struct {
	outgoingSalary  decimal.Decimal
	incomingSalary  decimal.Decimal
	outgoingPlayers int
	incomingPlayers int
}

// buildTradeTotals walks every player asset in the deal once and credits its
// salary to the sender's outgoing side and the receiver's incoming side.
func buildTradeTotals(deal *model.Deal, rc *Context) (map[string]*teamTradeTotals, error) {
	totals := make(map[string]*teamTradeTotals, len(deal.Teams))
	for _, team := range deal.Teams {
		totals[team] = &teamTradeTotals{}
	}
	for _, team := range deal.Teams {
		for _, a := range deal.Legs[team] {
			if a.Kind != model.AssetPlayer {
				continue
			}
			receiver, err := model.ResolveReceiver(deal, team, a)
			if err != nil {
				return nil, err
			}
			salary := decimal.Zero
			if p, ok := rc.Players[a.PlayerID]; ok {
				salary = p.Salary
			}
			totals[team].outgoingSalary = totals[team].outgoingSalary.Add(salary)
			totals[team].outgoingPlayers++
			if t, ok := totals[receiver]; ok {
				t.incomingSalary = t.incomingSalary.Add(salary)
				t.incomingPlayers++
			}
		}
	}
	return totals, nil
}

// SalaryMatchingRule enforces the salary matching ceilings on incoming player
// salary. Teams with cap room may absorb up to that room plus whatever they
// send out. Over-the-cap teams must send salary back, with the ceiling set by
// where their post-trade payroll lands: banded matching below the first
// apron, a flat multiplier between the aprons, and strict one-for-one
// dollar-capped matching at or above the second apron.
type SalaryMatchingRule struct{}

func (SalaryMatchingRule) ID() string    { return "salary_matching" }
func (SalaryMatchingRule) Priority() int { return 90 }

func (SalaryMatchingRule) Validate(deal *model.Deal, rc *Context) error {
	c := rc.Consts
	totals, err := buildTradeTotals(deal, rc)
	if err != nil {
		return err
	}

	for _, team := range deal.Teams {
		t := totals[team]
		if t.incomingSalary.IsZero() {
			continue
		}

		payrollBefore := rc.Payrolls[team]
		payrollAfter := payrollBefore.Sub(t.outgoingSalary).Add(t.incomingSalary)
		status := apronStatus(payrollAfter, c.FirstApron, c.SecondApron)

		fail := func(allowedIn decimal.Decimal, method string) error {
			return model.NewTradeError(model.CodeHardCapExceeded, "salary matching failed",
				map[string]any{
					"rule":            "salary_matching",
					"team_id":         team,
					"status":          status,
					"payroll_before":  payrollBefore.String(),
					"payroll_after":   payrollAfter.String(),
					"outgoing_salary": t.outgoingSalary.String(),
					"incoming_salary": t.incomingSalary.String(),
					"allowed_in":      allowedIn.String(),
					"method":          method,
				})
		}

		if payrollBefore.LessThan(c.SalaryCap) {
			capRoom := c.SalaryCap.Sub(payrollBefore)
			if t.incomingSalary.LessThanOrEqual(capRoom.Add(t.outgoingSalary)) {
				continue
			}
		}

		if !t.outgoingSalary.IsPositive() {
			return fail(decimal.Zero, "outgoing_required")
		}

		var allowedIn decimal.Decimal
		var method string
		switch status {
		case apronStatusSecond:
			if t.outgoingPlayers > 1 || t.incomingPlayers > 1 {
				return fail(decimal.Zero, "second_apron_one_for_one")
			}
			allowedIn = t.outgoingSalary.Mul(c.SecondApronMult).Floor()
			method = "outgoing_second_apron"
		case apronStatusFirst:
			allowedIn = t.outgoingSalary.Mul(c.FirstApronMult).Floor()
			method = "outgoing_first_apron"
		default:
			switch {
			case t.outgoingSalary.LessThanOrEqual(c.MatchSmallOutMax):
				allowedIn = t.outgoingSalary.Mul(decimal.NewFromInt(2)).Add(c.MatchBuffer)
			case t.outgoingSalary.LessThanOrEqual(c.MatchMidOutMax):
				allowedIn = t.outgoingSalary.Add(c.MatchMidAdd)
			default:
				allowedIn = t.outgoingSalary.Mul(c.MatchLargeMult).Floor().Add(c.MatchBuffer)
			}
			method = "outgoing_below_first_apron"
		}

		if t.incomingSalary.GreaterThan(allowedIn) {
			return fail(allowedIn, method)
		}
	}
	return nil
}

func apronStatus(payrollAfter, firstApron, secondApron decimal.Decimal) string {
	switch {
	case payrollAfter.GreaterThanOrEqual(secondApron):
		return apronStatusSecond
	case payrollAfter.GreaterThanOrEqual(firstApron):
		return apronStatusFirst
	default:
		return apronStatusBelow
	}
}
