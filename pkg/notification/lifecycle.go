package notification

import (
	"fmt"
	"slices"
)

// Action is a lifecycle operation applied to a notification.
type Action string

const (
	ActionRead    Action = "read"
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
	ActionPurge   Action = "purge"
)

type transition struct {
	from []Status
	to   Status
}

// transitions is the full lifecycle; anything not listed is rejected.
var transitions = map[Action]transition{
	ActionRead:    {from: []Status{StatusUnread}, to: StatusRead},
	ActionArchive: {from: []Status{StatusUnread, StatusRead}, to: StatusArchived},
	ActionDelete:  {from: []Status{StatusUnread, StatusRead, StatusArchived}, to: StatusDeleted},
	ActionPurge:   {from: []Status{StatusRead, StatusArchived, StatusDeleted}, to: StatusPurged},
}

// Transition returns the status reached by applying action to from.
func Transition(from Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok || !slices.Contains(t.from, from) {
		return from, fmt.Errorf("%w: cannot %s a notification in status %q", ErrInvalidTransition, action, from)
	}
	return t.to, nil
}

// SourcesOf lists the statuses action may be applied to.
func SourcesOf(action Action) []Status {
	return slices.Clone(transitions[action].from)
}

// CanTransition reports whether any action moves from to to.
func CanTransition(from, to Status) bool {
	for _, t := range transitions {
		if t.to == to && slices.Contains(t.from, from) {
			return true
		}
	}
	return false
}

// rank orders statuses along the lifecycle so already-applied actions can be
// told apart from backward moves.
func rank(s Status) int {
	switch s {
	case StatusUnread:
		return 0
	case StatusRead:
		return 1
	case StatusArchived:
		return 2
	case StatusDeleted:
		return 3
	case StatusPurged:
		return 4
	}
	return -1
}

// alreadyApplied reports whether the notification sits at or past the status
// action would move it to, which makes a repeated action a no-op.
func alreadyApplied(current Status, action Action) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	return rank(current) >= rank(t.to)
}
