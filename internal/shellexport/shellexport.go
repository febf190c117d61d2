// Package shellexport decides, on every shell prompt, whether cuenv should
// emit an env-diff, a one-time notice, or nothing at all — and formats that
// decision for whichever shell is asking. The hot path (Decide) must not
// evaluate the configuration language unless strictly required and must
// return in single-digit milliseconds in the steady state: it performs at
// most one stat() call (HasActiveMarker) before falling back to a slower
// path the caller drives explicitly.
package shellexport

import (
	"fmt"
	"strings"

	"github.com/cuenv/cuenv/internal/approval"
	"github.com/cuenv/cuenv/internal/statestore"
)

// Shell identifies the target shell for code generation.
type Shell string

const (
	Bash       Shell = "bash"
	Zsh        Shell = "zsh"
	Fish       Shell = "fish"
	PowerShell Shell = "powershell"
)

// Formatter emits shell-specific export/unset/no-op statements. One
// implementation per supported shell, matching how a multi-shell CLI
// typically factors its shell-integration output.
type Formatter interface {
	Export(name, value string) string
	Unset(name string) string
	Noop() string
	Comment(text string) string
}

// NewFormatter returns the Formatter for shell, defaulting to Bash syntax
// for any unrecognized value (never errors; the fast path must not fail).
func NewFormatter(shell Shell) Formatter {
	switch shell {
	case Zsh:
		return bashLikeFormatter{}
	case Fish:
		return fishFormatter{}
	case PowerShell:
		return powershellFormatter{}
	default:
		return bashLikeFormatter{}
	}
}

// escapeReplacer escapes \, ", $, and ` for safe interpolation inside a
// double-quoted shell string.
var escapeReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"`", "\\`",
)

func escape(value string) string {
	return escapeReplacer.Replace(value)
}

type bashLikeFormatter struct{}

func (bashLikeFormatter) Export(name, value string) string {
	return fmt.Sprintf("export %s=\"%s\"\n", name, escape(value))
}
func (bashLikeFormatter) Unset(name string) string { return fmt.Sprintf("unset %s\n", name) }
func (bashLikeFormatter) Noop() string             { return "" }
func (bashLikeFormatter) Comment(text string) string {
	return fmt.Sprintf("# %s\n", text)
}

type fishFormatter struct{}

func (fishFormatter) Export(name, value string) string {
	return fmt.Sprintf("set -gx %s \"%s\"\n", name, escape(value))
}
func (fishFormatter) Unset(name string) string { return fmt.Sprintf("set -e %s\n", name) }
func (fishFormatter) Noop() string             { return "" }
func (fishFormatter) Comment(text string) string {
	return fmt.Sprintf("# %s\n", text)
}

type powershellFormatter struct{}

func (powershellFormatter) Export(name, value string) string {
	return fmt.Sprintf("$env:%s = \"%s\"\n", name, escape(value))
}
func (powershellFormatter) Unset(name string) string {
	return fmt.Sprintf("Remove-Item Env:\\%s -ErrorAction SilentlyContinue\n", name)
}
func (powershellFormatter) Noop() string { return "" }
func (powershellFormatter) Comment(text string) string {
	return fmt.Sprintf("# %s\n", text)
}

// Decision is the outcome of the fast-path decision. Diff, Notice, both
// (a completed run emits its diff plus a notice), or neither may be set.
type Decision struct {
	Diff             map[string]diffEntry
	Notice           string
	ClearPendingFlag bool
	ClearLoadedFlag  bool
	MarkLoaded       bool
}

type diffEntry struct {
	unset bool
	value string
}

// Decide implements the documented fast-path algorithm steps 1-3. It takes
// the already-resolved directory key (callers compute this once per prompt
// via fingerprint.DirectoryKey) and whether env.cue matches the expected
// package; slow-path evaluation (step 4) is the caller's responsibility and
// is intentionally not part of this function, since it may need to run the
// configuration evaluator.
func Decide(store *statestore.Store, dirKey string, alreadyLoadedDir, pendingApprovalDir, currentDir string) Decision {
	if dirKey == "" {
		return Decision{ClearPendingFlag: true, ClearLoadedFlag: true}
	}

	if !store.HasActiveMarker(dirKey) {
		return Decision{} // fall through to slow path; caller decides
	}

	instanceHash, err := store.ReadActiveMarker(dirKey)
	if err != nil {
		return Decision{}
	}
	state, err := store.LoadStateSync(instanceHash)
	if err != nil || state == nil {
		return Decision{}
	}

	switch state.Status {
	case statestore.StatusCompleted:
		diff := map[string]diffEntry{}
		for k := range state.PreviousEnv {
			if _, stillSet := state.EnvironmentVars[k]; !stillSet {
				diff[k] = diffEntry{unset: true}
			}
		}
		for k, v := range state.EnvironmentVars {
			diff[k] = diffEntry{value: v}
		}
		decision := Decision{Diff: diff, ClearPendingFlag: true}
		if alreadyLoadedDir != currentDir {
			decision.Notice = "cuenv: project environment loaded"
			decision.MarkLoaded = true
		}
		return decision
	case statestore.StatusRunning:
		return Decision{} // never block the prompt
	default: // Failed, Cancelled
		return Decision{ClearLoadedFlag: true}
	}
}

// Render turns a Decision into shell source for fmtr.
func Render(fmtr Formatter, d Decision) string {
	var b strings.Builder
	if d.ClearPendingFlag {
		b.WriteString(fmtr.Unset("CUENV_PENDING_APPROVAL_DIR"))
	}
	if d.ClearLoadedFlag {
		b.WriteString(fmtr.Unset("CUENV_LOADED_DIR"))
	}
	for name, entry := range d.Diff {
		if entry.unset {
			b.WriteString(fmtr.Unset(name))
		} else {
			b.WriteString(fmtr.Export(name, entry.value))
		}
	}
	if d.Notice != "" {
		b.WriteString(fmtr.Comment(d.Notice))
	}
	if d.MarkLoaded {
		b.WriteString(fmtr.Export("CUENV_LOADED_DIR", "1"))
	}
	return b.String()
}

// RenderApprovalNotice emits a one-time notice referencing the exact hook
// count when approval is required before hooks can run.
func RenderApprovalNotice(fmtr Formatter, status approval.Status, hookCount int) string {
	if status == approval.Approved {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmtr.Export("CUENV_PENDING_APPROVAL_DIR", "1"))
	b.WriteString(fmtr.Comment(fmt.Sprintf("cuenv: %d hook(s) require approval; run `cuenv allow`", hookCount)))
	return b.String()
}
