package model

import (
	"time"
)

// ScanTrigger tells what started a scan.
type ScanTrigger string

const (
	ScanTriggerPost  ScanTrigger = "post"
	ScanTriggerBatch ScanTrigger = "batch"
)

// PersistResult is the outcome of recording a set of accepted matches.
type PersistResult struct {
	Persisted       []*Match       `json:"persisted"`
	AlreadyRecorded int            `json:"already_recorded"`
	Failures        []MatchFailure `json:"failures,omitempty"`
}

// ScanReport summarizes a scan invocation from fetch to persistence.
type ScanReport struct {
	Trigger         ScanTrigger      `json:"trigger"`
	PostID          int64            `json:"post_id,omitempty"`
	Candidates      int              `json:"candidates"`
	Excluded        int              `json:"excluded"`
	Accepted        []*AcceptedMatch `json:"accepted"`
	Persisted       []*Match         `json:"persisted"`
	AlreadyRecorded int              `json:"already_recorded"`
	Failures        []MatchFailure   `json:"failures,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	Duration        time.Duration    `json:"duration"`
}

// ApplyPersistResult copies the persistence outcome into the report.
func (r *ScanReport) ApplyPersistResult(result *PersistResult) {
	if result == nil {
		return
	}
	r.Persisted = result.Persisted
	r.AlreadyRecorded = result.AlreadyRecorded
	r.Failures = result.Failures
}
