package models

import "time"

// ColumnSet is the contract an evaluator's result payload must satisfy: a
// flat, serializable set of named fields. The engine imposes no other
// invariants on evaluator output.
type ColumnSet interface {
	Columns() map[string]string
}

// Row is one scored result record combining a test case's identity with the
// merged evaluator outputs. Rows are constructed exactly once per successful
// case by the plugin's row factory and never mutated afterwards.
type Row interface {
	// Identifier back-references TestCase.ID and is unique within a run.
	Identifier() int

	// FinalScore is the row's final numeric score on ScoreRange.
	FinalScore() float64

	// ScoreRange declares the scale FinalScore is expressed on.
	ScoreRange() ScoreRange

	// Columns returns the row's flat field mapping for publication.
	Columns() map[string]string
}

// StageDurations records elapsed wall-clock time per pipeline stage for one
// test case. It is recorded only when the case completes successfully; a
// timeout or error leaves no entry, which the aggregator renders as "N/A".
type StageDurations struct {
	Setup        time.Duration
	Feature      time.Duration
	StaticEval   time.Duration
	LLMEval      time.Duration
	TestingStage time.Duration
	Total        time.Duration
}
