package interruptions

import (
	"fmt"
	"strings"
)

// Policy decides what a barge-in does to local playback.
type Policy string

const (
	// PolicyKeywordGated ducks playback when the model reports an
	// interruption and only hard-stops on a spoken stop keyword.
	PolicyKeywordGated Policy = "keyword_gated"
	// PolicyHardStop stops playback as soon as the model reports an
	// interruption.
	PolicyHardStop Policy = "hard_stop"
)

const DefaultPolicy = PolicyKeywordGated

func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyKeywordGated:
		return PolicyKeywordGated, nil
	case PolicyHardStop:
		return PolicyHardStop, nil
	default:
		return "", fmt.Errorf("unknown interruption policy: %s", value)
	}
}

type Action int

const (
	ActionNone Action = iota
	ActionDuck
	ActionHardStop
)

func (a Action) String() string {
	switch a {
	case ActionDuck:
		return "duck"
	case ActionHardStop:
		return "hard_stop"
	default:
		return "none"
	}
}
