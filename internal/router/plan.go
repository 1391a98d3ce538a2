package router

import (
	"context"

	"github.com/1broseidon/steer/internal/automation"
)

// PlanStep describes how a candidate route would be treated.
type PlanStep struct {
	Route     automation.Route `json:"route"`
	Available bool             `json:"available"`
	Supported bool             `json:"supported"`
	// NeedsRestore is set when the route needs the window raised first.
	NeedsRestore bool `json:"needs_restore,omitempty"`
	// Blocked is set when the policy rules the route out.
	Blocked bool   `json:"blocked,omitempty"`
	Note    string `json:"note,omitempty"`
}

// Explain reports the candidate plan for a request without executing
// anything. Only capability probes are issued.
func (e *Engine) Explain(ctx context.Context, req Request) (automation.Window, []PlanStep, error) {
	win, err := e.prepare(ctx, req)
	if err != nil {
		return win, nil, err
	}

	kind := req.Command.Kind()
	var steps []PlanStep
	for _, route := range Candidates(kind) {
		step := PlanStep{Route: route}
		ch, ok := e.channels[route]
		if !ok {
			step.Note = "no channel configured"
			steps = append(steps, step)
			continue
		}
		step.Available = true

		supported, err := ch.Supports(ctx, kind, win)
		if err != nil {
			if ctx.Err() != nil {
				return win, steps, ctx.Err()
			}
			step.Note = err.Error()
		}
		step.Supported = supported

		if supported && requiresFrontmost(route) && !win.Frontmost() {
			if req.Policy == automation.PolicyAllowRestore {
				step.NeedsRestore = true
			} else {
				step.Blocked = true
				step.Note = "target not frontmost"
			}
		}
		steps = append(steps, step)
	}
	return win, steps, nil
}
