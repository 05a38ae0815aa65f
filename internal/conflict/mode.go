package conflict

import (
	"fmt"
	"strings"
)

// Mode selects how invalid and conflicting candidates are handled.
type Mode int

const (
	// Interactive asks the operator.
	Interactive Mode = iota + 1
	// IgnoreAllConflicts imports every candidate.
	IgnoreAllConflicts
	// RejectOnConflict skips invalid and conflicting candidates.
	RejectOnConflict
)

func (m Mode) String() string {
	switch m {
	case Interactive:
		return "interactive"
	case IgnoreAllConflicts:
		return "ignore"
	case RejectOnConflict:
		return "reject"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "interactive", "ignore" or "reject".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interactive":
		return Interactive, nil
	case "ignore":
		return IgnoreAllConflicts, nil
	case "reject":
		return RejectOnConflict, nil
	}
	return 0, fmt.Errorf("unknown conflict mode %q (use interactive, ignore or reject)", s)
}

// Action is an operator decision on a candidate.
type Action int

const (
	ActionAbort Action = iota + 1
	ActionReplace
	ActionSkip
	ActionIgnore
)

// Key returns the single letter the operator types.
func (a Action) Key() string {
	switch a {
	case ActionAbort:
		return "a"
	case ActionReplace:
		return "r"
	case ActionSkip:
		return "s"
	case ActionIgnore:
		return "i"
	}
	return "?"
}

func (a Action) String() string {
	switch a {
	case ActionAbort:
		return "abort"
	case ActionReplace:
		return "replace conflicts"
	case ActionSkip:
		return "skip/remove candidate"
	case ActionIgnore:
		return "ignore conflict"
	}
	return fmt.Sprintf("action(%d)", int(a))
}
