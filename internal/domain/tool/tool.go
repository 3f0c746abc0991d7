// Package tool defines the typed tool-call model: the closed set of tool
// names, the capability requirement each declares, and the parser for the
// ACTION directive convention in reasoning output.
package tool

import (
	"regexp"
	"strings"

	"github.com/outlive-sh/outlive/internal/domain/survival"
)

// Name identifies a dispatchable tool. The set is closed: dispatch only
// accepts names registered in the tool registry.
type Name string

const (
	CheckBalance   Name = "check_balance"
	Transfer       Name = "transfer"
	Trade          Name = "trade"
	ReadFile       Name = "read_file"
	WriteFile      Name = "write_file"
	RunCommand     Name = "run_command"
	WebSearch      Name = "web_search"
	WebFetch       Name = "web_fetch"
	GitCommit      Name = "git_commit"
	GitStatus      Name = "git_status"
	BountyScan     Name = "bounty_scan"
	BountyEvaluate Name = "bounty_evaluate"
	BountyClaim    Name = "bounty_claim"
	BountyExecute  Name = "bounty_execute"
	BountyStatus   Name = "bounty_status"
)

// Requirement names the capability a tool needs before it may be dispatched.
type Requirement string

const (
	RequiresNone       Requirement = ""
	RequiresTrade      Requirement = "trade"
	RequiresSelfModify Requirement = "self_modify"
	RequiresReplicate  Requirement = "replicate"
)

// Allowed reports whether the capability set satisfies the requirement.
func (r Requirement) Allowed(caps survival.Capabilities) bool {
	switch r {
	case RequiresTrade:
		return caps.CanTrade
	case RequiresSelfModify:
		return caps.CanSelfModify
	case RequiresReplicate:
		return caps.CanReplicate
	default:
		return true
	}
}

// Call is one parsed tool invocation.
type Call struct {
	Name  Name   `json:"name"`
	Input string `json:"input"`
}

// actionRe matches the fixed `ACTION: tool_name(args)` convention. Args may
// span the rest of the line, including nested parentheses up to the final
// closing one.
var actionRe = regexp.MustCompile(`(?m)^\s*ACTION:\s*([a-z_]+)\((.*)\)\s*$`)

// ParseAction extracts at most one action directive from reasoning text.
// Only the first match counts; a turn records a single action. Returns
// ok=false when the text contains no directive.
func ParseAction(text string) (Call, bool) {
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return Call{}, false
	}
	return Call{
		Name:  Name(m[1]),
		Input: strings.TrimSpace(m[2]),
	}, true
}
