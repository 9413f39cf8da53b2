// Package ops implements the operation set exposed to the conversational
// caller and the uniform dispatch contract they share: every invocation is a
// JSON payload {action, params}; every outcome, success or failure, comes
// back as text the language-model caller can read and react to.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Request is the uniform invocation payload.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Result is the tagged outcome of an operation: a table with its bounded
// rendering, plain text, or an error code with detail. Exactly one branch is
// populated; callers can distinguish structured data from prose without
// sniffing strings.
type Result struct {
	Table  *tabular.Table
	Text   string
	Code   mcperr.Code
	Detail string
}

// IsError reports whether the result carries an error code.
func (r Result) IsError() bool { return r.Code != "" }

// Render flattens the result into the textual form relayed to the caller.
func (r Result) Render() string {
	if r.IsError() {
		return mcperr.Text(r.Code, r.Detail)
	}
	return r.Text
}

// TextResult wraps plain text.
func TextResult(text string) Result { return Result{Text: text} }

// TableResult pairs a result table with its bounded rendering.
func TableResult(t *tabular.Table, text string) Result { return Result{Table: t, Text: text} }

// ErrorResult wraps a catalog code and detail.
func ErrorResult(code mcperr.Code, detail string) Result { return Result{Code: code, Detail: detail} }

// Errorf formats detail for an error result.
func Errorf(code mcperr.Code, format string, args ...any) Result {
	return Result{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Handler executes one action.
type Handler func(ctx context.Context, params map[string]any) Result

// Dispatcher routes {action, params} requests to registered handlers,
// normalizes every failure into catalog text, and short-circuits inputs that
// have already failed repeatedly.
type Dispatcher struct {
	logger        zerolog.Logger
	repeatedLimit int

	handlers map[string]Handler

	mu       sync.Mutex
	failures map[string]int
}

// NewDispatcher constructs an empty dispatcher. repeatedLimit is the number
// of recorded failures after which an identical raw payload is rejected
// outright; pass 0 to disable the guard.
func NewDispatcher(logger zerolog.Logger, repeatedLimit int) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		repeatedLimit: repeatedLimit,
		handlers:      map[string]Handler{},
		failures:      map[string]int{},
	}
}

// Register binds an action name to its handler.
func (d *Dispatcher) Register(action string, h Handler) {
	d.handlers[action] = h
}

// Actions returns the registered action names, sorted.
func (d *Dispatcher) Actions() []string {
	out := make([]string, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Do routes a decoded request. Handler panics are converted to error results
// so no fault ever propagates to the orchestrator.
func (d *Dispatcher) Do(ctx context.Context, req Request) (res Result) {
	h, ok := d.handlers[strings.TrimSpace(req.Action)]
	if !ok {
		return Errorf(mcperr.UnknownAction, "invalid action %q; use one of %v", req.Action, d.Actions())
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().Str("action", req.Action).Interface("panic", rec).Msg("handler panic recovered")
			res = Errorf(mcperr.Validation, "internal error processing %q", req.Action)
		}
	}()

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	return h(ctx, params)
}

// Dispatch is the raw entry point: it decodes the JSON payload (with one
// repair attempt for the malformed JSON language models tend to emit),
// applies the repeated-failure guard, routes, and flattens the outcome to
// text.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	requestID := uuid.NewString()
	start := time.Now()

	if d.guardTripped(raw) {
		d.logger.Warn().Str("request_id", requestID).Msg("repeated failing payload short-circuited")
		return mcperr.Textf(mcperr.RepeatedError, "this exact input has already failed %d times", d.repeatedLimit)
	}

	req, err := decodeRequest(raw)
	if err != nil {
		d.recordFailure(raw)
		d.logger.Warn().Str("request_id", requestID).Err(err).Msg("payload decode failed")
		return mcperr.Textf(mcperr.ParseFailed, "error processing input: %v", err)
	}

	res := d.Do(ctx, req)
	// Transient failures (busy, timeout, external outage) don't count toward
	// the guard: the same payload can legitimately succeed once they clear.
	if res.IsError() && !mcperr.Transient(res.Code) {
		d.recordFailure(raw)
	}

	d.logger.Info().
		Str("request_id", requestID).
		Str("action", req.Action).
		Bool("error", res.IsError()).
		Dur("duration", time.Since(start)).
		Msg("dispatch served")

	return res.Render()
}

// decodeRequest parses the payload, falling back to a repaired copy when the
// JSON is malformed (single quotes, trailing commas, unclosed braces).
func decodeRequest(raw string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err == nil {
		if strings.TrimSpace(req.Action) == "" {
			return req, fmt.Errorf("payload is missing 'action'")
		}
		return req, nil
	}

	fixed, rerr := jsonrepair.RepairJSON(raw)
	if rerr != nil {
		return req, fmt.Errorf("payload is not valid JSON")
	}
	if err := json.Unmarshal([]byte(fixed), &req); err != nil {
		return req, fmt.Errorf("payload is not valid JSON")
	}
	if strings.TrimSpace(req.Action) == "" {
		return req, fmt.Errorf("payload is missing 'action'")
	}
	return req, nil
}

func (d *Dispatcher) guardTripped(raw string) bool {
	if d.repeatedLimit <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures[raw] >= d.repeatedLimit
}

func (d *Dispatcher) recordFailure(raw string) {
	if d.repeatedLimit <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[raw]++
}

// Param helpers: JSON params arrive as map[string]any with float64 numbers.

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return strings.TrimSpace(s), ok
}

func stringSliceParam(params map[string]any, key string) ([]string, bool) {
	v, ok := params[key]
	if !ok {
		return nil, false
	}
	switch vs := v.(type) {
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, true
	case []string:
		out := make([]string, 0, len(vs))
		for _, s := range vs {
			out = append(out, strings.TrimSpace(s))
		}
		return out, true
	case string:
		// A single name is tolerated where a list is expected.
		return []string{strings.TrimSpace(vs)}, true
	}
	return nil, false
}

func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return fallback
}

func boolParam(params map[string]any, key string, fallback bool) bool {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return fallback
}
