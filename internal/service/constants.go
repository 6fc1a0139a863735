package service

import (
	"fmt"
	"time"
)

const (
	// DefaultInterval is the sleep between leaderboard cycles
	DefaultInterval = 180 * time.Minute

	// DefaultConcurrency processes one athlete at a time
	DefaultConcurrency = 1

	// DetailConcurrency bounds concurrent detail fetches for one athlete
	DetailConcurrency = 1
)

// Stages name where a per-athlete failure happened
const (
	StageToken      = "token"
	StageProfile    = "profile"
	StageActivities = "activities"
)

// FailurePolicy decides what a failed athlete contributes to a snapshot
type FailurePolicy string

const (
	// PolicyOmit leaves failed athletes out of the ranking
	PolicyOmit FailurePolicy = "omit"
	// PolicyZero ranks failed athletes with a zero total
	PolicyZero FailurePolicy = "zero"
)

// ParseFailurePolicy accepts "omit", "zero", or empty (omit)
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyOmit:
		return PolicyOmit, nil
	case PolicyZero:
		return PolicyZero, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want omit or zero)", s)
}
