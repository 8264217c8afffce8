package models

// MediaType represents the type of media (movie or tv show)
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Operation represents how a file reaches its destination
type Operation string

const (
	OperationMove Operation = "move"
	OperationCopy Operation = "copy"
)

// JobState represents the lifecycle state of a batch rename job.
// Transitions are one-directional: Pending -> Running -> terminal.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// IsTerminal reports whether the state admits no further transitions.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// Rename failure reasons surfaced in RenameResult.Reason
const (
	ReasonNoMatch             = "no match"
	ReasonProviderUnavailable = "provider unavailable"
	ReasonConflict            = "destination already exists"
)
