// Package usage prices language-model calls and keeps running totals.
package usage

import (
	"fmt"
	"time"

	"github.com/nibzard/tasklane/internal/dates"
)

// DefaultMaxEvents bounds the event log.
const DefaultMaxEvents = 100

// Rate is the price in dollars per 1K tokens.
type Rate struct {
	Input  float64 `json:"input" toml:"input"`
	Output float64 `json:"output" toml:"output"`
}

// DefaultRates returns the built-in pricing table.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"gpt-3.5-turbo": {Input: 0.0015, Output: 0.002},
		"gpt-4":         {Input: 0.03, Output: 0.06},
		"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
		"gpt-4o":        {Input: 0.005, Output: 0.015},
		"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
	}
}

// Usage is the token usage reported by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Total returns TotalTokens, or prompt+completion when the endpoint left it zero.
func (u Usage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// Event records one priced call.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Model     string        `json:"model"`
	Tokens    int           `json:"tokens"`
	Cost      float64       `json:"cost"`
	Latency   time.Duration `json:"latency"`
}

// Stats are the persisted counters.
type Stats struct {
	QueriesToday int     `json:"queriesToday"`
	TotalTokens  int     `json:"totalTokens"`
	TotalCost    float64 `json:"totalCost"`
	Events       []Event `json:"events"`
	LastReset    string  `json:"lastReset"`
}

// UnknownModelError is returned for a model missing from the rate table.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no pricing for model %q", e.Model)
}

// Tracker prices calls and accumulates Stats.
// It is not safe for concurrent use.
type Tracker struct {
	rates     map[string]Rate
	stats     Stats
	maxEvents int
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for events and the daily reset.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMaxEvents caps the event log.
func WithMaxEvents(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxEvents = n
		}
	}
}

// NewTracker creates a tracker for the given rate table. A nil table means
// DefaultRates.
func NewTracker(rates map[string]Rate, opts ...Option) *Tracker {
	if rates == nil {
		rates = DefaultRates()
	}
	t := &Tracker{
		rates:     rates,
		maxEvents: DefaultMaxEvents,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Rate returns the pricing for model.
func (t *Tracker) Rate(model string) (Rate, error) {
	r, ok := t.rates[model]
	if !ok {
		return Rate{}, &UnknownModelError{Model: model}
	}
	return r, nil
}

// Cost prices a call without recording it.
func (t *Tracker) Cost(model string, u Usage) (float64, error) {
	r, err := t.Rate(model)
	if err != nil {
		return 0, err
	}
	return float64(u.PromptTokens)*r.Input/1000 + float64(u.CompletionTokens)*r.Output/1000, nil
}

// Record prices a call and adds it to the counters. Nothing is recorded for
// an unknown model.
func (t *Tracker) Record(model string, u Usage, latency time.Duration) (Event, error) {
	cost, err := t.Cost(model, u)
	if err != nil {
		return Event{}, err
	}
	t.rollover()

	ev := Event{
		Timestamp: t.now().UTC(),
		Model:     model,
		Tokens:    u.Total(),
		Cost:      cost,
		Latency:   latency,
	}
	t.stats.QueriesToday++
	t.stats.TotalTokens += ev.Tokens
	t.stats.TotalCost += cost
	t.stats.Events = append(t.stats.Events, ev)
	if over := len(t.stats.Events) - t.maxEvents; over > 0 {
		t.stats.Events = append([]Event{}, t.stats.Events[over:]...)
	}
	return ev, nil
}

// Stats returns a copy of the counters, resetting the daily counter first
// if the local calendar day changed.
func (t *Tracker) Stats() Stats {
	t.rollover()
	s := t.stats
	s.Events = append([]Event{}, t.stats.Events...)
	return s
}

// Restore replaces the counters, e.g. after loading them from storage.
func (t *Tracker) Restore(s Stats) {
	s.Events = append([]Event{}, s.Events...)
	t.stats = s
}

// Reset zeroes every counter, including the cumulative totals.
func (t *Tracker) Reset() {
	t.stats = Stats{LastReset: dates.Today(t.now())}
}

func (t *Tracker) rollover() {
	today := dates.Today(t.now())
	if t.stats.LastReset != today {
		t.stats.QueriesToday = 0
		t.stats.LastReset = today
	}
}
