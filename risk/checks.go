package risk

import (
	"fmt"
	"strings"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	PlannedRisk    float64 `json:"planned_risk"`
	PlannedRiskPct float64 `json:"planned_risk_pct"`
	PlannedRR      float64 `json:"planned_rr"`
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes returns the violation codes in order.
func (d Decision) Codes() []string {
	out := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, v.Code)
	}
	return out
}

func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		msgs = append(msgs, v.Code+": "+v.Msg)
	}
	return strings.Join(msgs, "; ")
}

// Evaluate is the trade-approval verdict for an order carrying SL/TP.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Entry <= 0 || intent.StopLoss <= 0 {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if intent.Volume <= 0 {
		d.add("NO_VOLUME", "volume must be positive")
		return d
	}

	switch intent.Side {
	case Buy:
		if intent.StopLoss >= intent.Entry {
			d.add("STOP_WRONG_SIDE", fmt.Sprintf("buy stop %.5f must be below entry %.5f", intent.StopLoss, intent.Entry))
		}
		if intent.TakeProfit > 0 && intent.TakeProfit <= intent.Entry {
			d.add("TARGET_WRONG_SIDE", fmt.Sprintf("buy target %.5f must be above entry %.5f", intent.TakeProfit, intent.Entry))
		}
	case Sell:
		if intent.StopLoss <= intent.Entry {
			d.add("STOP_WRONG_SIDE", fmt.Sprintf("sell stop %.5f must be above entry %.5f", intent.StopLoss, intent.Entry))
		}
		if intent.TakeProfit > 0 && intent.TakeProfit >= intent.Entry {
			d.add("TARGET_WRONG_SIDE", fmt.Sprintf("sell target %.5f must be below entry %.5f", intent.TakeProfit, intent.Entry))
		}
	}

	contract := p.ContractSize
	if contract <= 0 {
		contract = StandardLot
	}
	q := intent.QuoteToAccount
	if q <= 0 {
		q = 1
	}
	d.PlannedRisk = PlannedRisk(intent.Volume, contract, intent.Entry, intent.StopLoss, q)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)
	if intent.TakeProfit > 0 {
		d.PlannedRR = RR(intent.Entry, intent.StopLoss, intent.TakeProfit)
	}

	if p.MaxRiskPercent > 0 && d.PlannedRiskPct > p.MaxRiskPercent {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%", d.PlannedRiskPct, p.MaxRiskPercent))
	}
	if intent.TakeProfit > 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if p.MaxOpenTrades > 0 && acct.OpenTrades >= p.MaxOpenTrades {
		d.add("TOO_MANY_OPEN_TRADES",
			fmt.Sprintf("open trades %d >= max %d", acct.OpenTrades, p.MaxOpenTrades))
	}

	if p.RequireConfidence {
		switch {
		case intent.Signal == nil:
			d.add("CONFIDENCE_BELOW_EXECUTE", "no confidence signal supplied")
		case !intent.Signal.Allows(string(intent.Side)):
			d.add("CONFIDENCE_BELOW_EXECUTE",
				fmt.Sprintf("signal %s %s (score %.1f) does not support %s",
					intent.Signal.Action, intent.Signal.Direction, intent.Signal.Score, intent.Side))
		}
	}

	return d
}
