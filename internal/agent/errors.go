/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import "pgedge-nla/internal/presentation"

// FailureKind classifies why an Answer failed.
type FailureKind string

const (
	// FailureValidation covers an empty question or empty generated SQL.
	FailureValidation FailureKind = "validation"
	// FailureSafety means the generated SQL was refused by the guard.
	FailureSafety FailureKind = "safety"
	// FailureExecution means the database returned an error.
	FailureExecution FailureKind = "execution"
	// FailureInternal is anything else caught at the Answer boundary.
	FailureInternal FailureKind = "internal"
)

// DegradationKind names a problem that is logged and absorbed without
// failing the request.
type DegradationKind string

const (
	DegradationParse          DegradationKind = "parse"
	DegradationClassification DegradationKind = "classification"
	// DegradationSummary is logged by presentation.Summarize.
	DegradationSummary DegradationKind = presentation.SummaryDegradation
)
