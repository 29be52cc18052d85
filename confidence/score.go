// Package confidence turns analyst / model votes into a 0-100 confidence
// score and maps it onto an observe / watch / execute action.
package confidence

import (
	"fmt"
	"math"
	"strings"
)

type Direction string

const (
	Buy     Direction = "buy"
	Sell    Direction = "sell"
	Neutral Direction = "neutral"
)

func (d Direction) sign() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	}
	return 0
}

type NewsImpact string

const (
	NewsNone   NewsImpact = "none"
	NewsLow    NewsImpact = "low"
	NewsMedium NewsImpact = "medium"
	NewsHigh   NewsImpact = "high"
)

type Session string

const (
	SessionAsia     Session = "asia"
	SessionLondon   Session = "london"
	SessionNewYork  Session = "newyork"
	SessionOverlap  Session = "overlap"
	SessionOffHours Session = "offhours"
)

type Action string

const (
	Observe Action = "observe"
	Watch   Action = "watch"
	Execute Action = "execute"
)

var newsPenalty = map[NewsImpact]float64{
	NewsLow:    5,
	NewsMedium: 15,
	NewsHigh:   30,
}

var sessionPenalty = map[Session]float64{
	SessionAsia:     10,
	SessionOffHours: 20,
}

// Vote is one source's opinion on the trade.
type Vote struct {
	Source     string    `json:"source" yaml:"source"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Weight     float64   `json:"weight" yaml:"weight"`
	Confidence float64   `json:"confidence" yaml:"confidence"` // 0..1
}

type Input struct {
	Votes   []Vote     `json:"votes" yaml:"votes"`
	News    NewsImpact `json:"news" yaml:"news"`
	Session Session    `json:"session" yaml:"session"`
}

// Thresholds are the score cut-offs for watch and execute.
type Thresholds struct {
	Watch   float64 `json:"watch" yaml:"watch"`
	Execute float64 `json:"execute" yaml:"execute"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Watch: 50, Execute: 70}
}

func (th Thresholds) Validate() error {
	if th.Watch < 0 || th.Execute > 100 {
		return fmt.Errorf("confidence thresholds must be within 0..100")
	}
	if th.Watch >= th.Execute {
		return fmt.Errorf("confidence watch threshold %.1f must be below execute %.1f", th.Watch, th.Execute)
	}
	return nil
}

// Signal is the scored outcome consumed by auto-fill and trade approval.
type Signal struct {
	Score          float64   `json:"score"`
	RawScore       float64   `json:"raw_score"`
	Direction      Direction `json:"direction"`
	NewsPenalty    float64   `json:"news_penalty"`
	SessionPenalty float64   `json:"session_penalty"`
	Action         Action    `json:"action"`
}

// Allows reports whether the signal supports executing a trade on side.
func (s Signal) Allows(side string) bool {
	return s.Action == Execute && strings.EqualFold(string(s.Direction), side)
}

// Score computes the weighted agreement of the votes, subtracts news and
// session penalties and maps the result onto an action.
func Score(in Input, th Thresholds) Signal {
	var net, total float64
	for _, v := range in.Votes {
		w := v.Weight
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		c := clamp(v.Confidence, 0, 1)
		net += w * c * v.Direction.sign()
		total += w
	}

	sig := Signal{
		Direction:      Neutral,
		NewsPenalty:    newsPenalty[in.News],
		SessionPenalty: sessionPenalty[in.Session],
		Action:         Observe,
	}
	if total == 0 || net == 0 {
		return sig
	}

	if net > 0 {
		sig.Direction = Buy
	} else {
		sig.Direction = Sell
	}
	sig.RawScore = 100 * math.Abs(net) / total
	sig.Score = clamp(sig.RawScore-sig.NewsPenalty-sig.SessionPenalty, 0, 100)
	sig.Action = th.action(sig.Score)
	return sig
}

func (th Thresholds) action(score float64) Action {
	switch {
	case score >= th.Execute:
		return Execute
	case score >= th.Watch:
		return Watch
	}
	return Observe
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Min(math.Max(x, lo), hi)
}

// ParseNews and ParseSession accept empty strings as "no penalty".
func ParseNews(s string) (NewsImpact, error) {
	switch n := NewsImpact(strings.ToLower(strings.TrimSpace(s))); n {
	case "", NewsNone:
		return NewsNone, nil
	case NewsLow, NewsMedium, NewsHigh:
		return n, nil
	}
	return "", fmt.Errorf("unknown news impact %q (want none|low|medium|high)", s)
}

func ParseSession(s string) (Session, error) {
	switch ss := Session(strings.ToLower(strings.TrimSpace(s))); ss {
	case "":
		return SessionLondon, nil
	case SessionAsia, SessionLondon, SessionNewYork, SessionOverlap, SessionOffHours:
		return ss, nil
	}
	return "", fmt.Errorf("unknown session %q (want asia|london|newyork|overlap|offhours)", s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Buy, Sell, Neutral:
		return d, nil
	}
	return "", fmt.Errorf("unknown vote direction %q (want buy|sell|neutral)", s)
}
