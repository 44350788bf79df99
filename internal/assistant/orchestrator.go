package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/logging"
	"github.com/nibzard/tasklane/internal/prompts"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/usage"
)

// summaryContext is the number of history entries sent with the summary
// round: the user turn, the function call and its result.
const summaryContext = 3

// Phase is the state of one utterance.
type Phase int

const (
	PhaseAwaitingFirstResponse Phase = iota
	PhaseAwaitingToolDispatch
	PhaseAwaitingSummary
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingFirstResponse:
		return "awaiting-first-response"
	case PhaseAwaitingToolDispatch:
		return "awaiting-tool-dispatch"
	case PhaseAwaitingSummary:
		return "awaiting-summary"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reply is the outcome of Ask. Err is set when Text is an error message.
type Reply struct {
	Text      string
	Err       error
	RequestID string
	// Phase is the phase the utterance ended in. A failure leaves it at the
	// phase that failed.
	Phase Phase
	// Result holds the tool dispatch outcome when the model called a tool.
	Result *Result
	// Summarized is false when the tool result was returned as a fallback.
	Summarized bool
}

// Orchestrator runs the two-round tool-calling protocol over a Store.
// It is not safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	store     *todo.Store
	tracker   *usage.Tracker
	history   *history.Manager
	completer Completer
	renderer  *prompts.Renderer
	events    logging.EventWriter
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCompleter replaces the HTTP transport.
func WithCompleter(c Completer) Option {
	return func(o *Orchestrator) {
		o.completer = c
	}
}

// WithRenderer sets the prompt renderer.
func WithRenderer(r *prompts.Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithEventWriter sets where assistant events are written.
func WithEventWriter(w logging.EventWriter) Option {
	return func(o *Orchestrator) {
		o.events = logging.Synchronized(w)
	}
}

// WithLogger sets the console logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for prompts and latency.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRequestIDs sets the request id generator.
func WithRequestIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// New creates an orchestrator. Zero fields of cfg take their defaults.
func New(cfg Config, store *todo.Store, tracker *usage.Tracker, hist *history.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      DefaultConfig().Merge(cfg),
		store:    store,
		tracker:  tracker,
		history:  hist,
		renderer: prompts.NewRenderer(prompts.NewStore("")),
		events:   logging.NullWriter{},
		logger:   log.New(io.Discard),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.history.SetLimit(o.cfg.HistoryLimit)
	return o
}

// Config returns the current configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// SetConfig replaces the configuration. An empty API key is kept empty so
// the assistant can be unconfigured.
func (o *Orchestrator) SetConfig(cfg Config) {
	key := cfg.APIKey
	o.cfg = DefaultConfig().Merge(cfg)
	o.cfg.APIKey = key
	o.history.SetLimit(o.cfg.HistoryLimit)
}

func (o *Orchestrator) client() Completer {
	if o.completer != nil {
		return o.completer
	}
	return NewHTTPClient(o.cfg.APIKey, o.cfg.BaseURL, o.cfg.Timeout())
}

// Ask answers one utterance. It never returns an error: failures become the
// reply text and are also available as Reply.Err.
func (o *Orchestrator) Ask(ctx context.Context, text string) Reply {
	reply := Reply{RequestID: o.newID(), Phase: PhaseAwaitingFirstResponse}
	text = strings.TrimSpace(text)
	if text == "" {
		return o.fail(reply, ErrEmptyRequest)
	}
	if !o.cfg.Configured() {
		return o.fail(reply, &ConfigurationError{
			Field:   "assistant.api_key",
			Message: "set an API key in the config file or OPENAI_API_KEY",
		})
	}

	o.emit(logging.Event{Type: logging.EventRequest, RequestID: reply.RequestID, Content: text})
	o.history.Append(history.Message{Role: history.RoleUser, Content: text})

	system, err := o.systemPrompt()
	if err != nil {
		return o.fail(reply, err)
	}

	// Round 1.
	resp, err := o.complete(ctx, reply.RequestID, Request{
		Model:       o.cfg.Model,
		Messages:    append([]history.Message{system}, o.history.Window()...),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		Functions:   Functions(),
	})
	if err != nil {
		return o.fail(reply, err)
	}
	msg := resp.Choices[0].Message

	if msg.FunctionCall == nil {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return o.fail(reply, &TransportError{Status: 0, Message: "empty response"})
		}
		o.history.Append(history.Message{Role: history.RoleAssistant, Content: content})
		reply.Text = content
		reply.Phase = PhaseDone
		return reply
	}

	// Tool dispatch.
	reply.Phase = PhaseAwaitingToolDispatch
	call := *msg.FunctionCall
	result, err := Dispatch(o.store, call)
	if err != nil {
		return o.fail(reply, err)
	}
	reply.Result = &result
	o.emit(logging.Event{Type: logging.EventTool, RequestID: reply.RequestID, Tool: call.Name, Content: result.Text()})
	o.logger.Debug("tool dispatched", "request", reply.RequestID, "tool", call.Name, "items", len(result.Lines), "failed", result.Failed())

	o.history.Append(
		history.Message{Role: history.RoleAssistant, FunctionCall: &call},
		history.Message{Role: history.RoleFunction, Name: call.Name, Content: result.Text()},
	)

	// Round 2.
	reply.Phase = PhaseAwaitingSummary
	summary, err := o.summarize(ctx, reply.RequestID, system)
	reply.Phase = PhaseDone
	if err != nil {
		o.logger.Warn("summary failed, returning tool result", "request", reply.RequestID, "err", err)
		o.emit(logging.Event{Type: logging.EventError, RequestID: reply.RequestID, Content: "summary: " + err.Error()})
		reply.Text = result.Text()
		return reply
	}
	o.history.Append(history.Message{Role: history.RoleAssistant, Content: summary})
	o.emit(logging.Event{Type: logging.EventSummary, RequestID: reply.RequestID, Content: summary})
	reply.Text = summary
	reply.Summarized = true
	return reply
}

func (o *Orchestrator) summarize(ctx context.Context, requestID string, system history.Message) (string, error) {
	instruction, err := o.renderer.Render(prompts.SummaryPrompt, prompts.NewData(o.now(), nil))
	if err != nil {
		return "", err
	}
	msgs := append([]history.Message{system}, o.history.Last(summaryContext)...)
	msgs = append(msgs, history.Message{Role: history.RoleUser, Content: instruction})

	resp, err := o.complete(ctx, requestID, Request{
		Model:       o.cfg.Model,
		Messages:    msgs,
		MaxTokens:   o.cfg.SummaryMaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &TransportError{Message: "empty response"}
	}
	return content, nil
}

// complete sends one request and records its usage. A response without
// choices is an error.
func (o *Orchestrator) complete(ctx context.Context, requestID string, req Request) (*Response, error) {
	start := o.now()
	resp, err := o.client().Complete(ctx, req)
	latency := o.now().Sub(start)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Err: err}
		}
		return nil, err
	}
	o.recordUsage(requestID, resp.Usage, latency)
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Message: "empty response"}
	}
	return resp, nil
}

func (o *Orchestrator) recordUsage(requestID string, u usage.Usage, latency time.Duration) {
	ev, err := o.tracker.Record(o.cfg.Model, u, latency)
	if err != nil {
		o.logger.Warn("usage not recorded", "request", requestID, "model", o.cfg.Model, "err", err)
		return
	}
	o.emit(logging.Event{
		Type:      logging.EventUsage,
		RequestID: requestID,
		Model:     ev.Model,
		Tokens:    ev.Tokens,
		Cost:      ev.Cost,
		LatencyMS: latency.Milliseconds(),
	})
}

func (o *Orchestrator) systemPrompt() (history.Message, error) {
	var projects []prompts.Project
	for _, p := range o.store.Projects() {
		projects = append(projects, prompts.Project{ID: p.ID, Name: p.Name})
	}
	content, err := o.renderer.Render(prompts.SystemPrompt, prompts.NewData(o.now(), projects))
	if err != nil {
		return history.Message{}, fmt.Errorf("render system prompt: %w", err)
	}
	return history.Message{Role: history.RoleSystem, Content: content}, nil
}

func (o *Orchestrator) fail(reply Reply, err error) Reply {
	reply.Err = err
	reply.Text = err.Error()
	o.emit(logging.Event{Type: logging.EventError, RequestID: reply.RequestID, Content: err.Error()})
	o.logger.Error("assistant request failed", "request", reply.RequestID, "phase", reply.Phase, "err", err)
	return reply
}

func (o *Orchestrator) emit(ev logging.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now().UTC()
	}
	if err := o.events.Write(ev); err != nil {
		o.logger.Debug("write event", "err", err)
	}
}
