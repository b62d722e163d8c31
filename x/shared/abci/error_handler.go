// Package abci reports errors raised by end-of-block hooks. Hooks never abort
// the block, so failures are logged and surfaced as events instead.
package abci

import (
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EventTypeHookError is emitted for every failed end-of-block hook.
const EventTypeHookError = "end_block_hook_error"

// Severity ranks a hook failure.
type Severity int

const (
	// SeverityLow covers failures the next block retries on its own.
	SeverityLow Severity = iota
	// SeverityHigh covers failures that leave state behind schedule, such as
	// an unapplied downtime slash.
	SeverityHigh
	// SeverityCritical covers failures that point at corrupted state.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// HookReporter logs and emits hook failures for one module.
type HookReporter struct {
	module string
	ctx    sdk.Context
}

// NewHookReporter binds a reporter to the block context.
func NewHookReporter(ctx sdk.Context, module string) HookReporter {
	return HookReporter{module: module, ctx: ctx}
}

// Report records err and returns true when it was non-nil.
//
//	if r.Report("slash_downtime", abci.SeverityHigh, k.SlashDowntime(ctx)) {
//	    // continue with the next hook
//	}
func (r HookReporter) Report(hook string, severity Severity, err error) bool {
	if err == nil {
		return false
	}

	logger := r.ctx.Logger().With("module", r.module, "hook", hook, "severity", severity.String())
	switch severity {
	case SeverityLow:
		logger.Warn("end block hook failed", "error", err.Error())
	default:
		logger.Error("end block hook failed", "error", err.Error())
	}

	r.ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			EventTypeHookError,
			sdk.NewAttribute("module", r.module),
			sdk.NewAttribute("hook", hook),
			sdk.NewAttribute("severity", severity.String()),
			sdk.NewAttribute("error", err.Error()),
			sdk.NewAttribute("height", strconv.FormatInt(r.ctx.BlockHeight(), 10)),
		),
	)
	return true
}
