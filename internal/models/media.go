package models

import "time"

// Guess is the parser's structured interpretation of a raw filename.
// It is immutable once produced; worst case only Title is set.
type Guess struct {
	Title        string
	Year         int  // 0 when unknown
	Season       *int // nil for movies
	Episode      *int // nil for movies
	EpisodeTitle string
	ReleaseTags  []string // normalized lowercase, closed vocabularies only
}

// IsTV reports whether the guess carries season/episode information.
func (g Guess) IsTV() bool {
	return g.Season != nil && g.Episode != nil
}

// HasTag reports whether a release tag was recognized in the filename.
func (g Guess) HasTag(tag string) bool {
	for _, t := range g.ReleaseTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Candidate is one provider-returned possible identity for a Guess.
// Score is assigned by the matcher, never by the provider.
type Candidate struct {
	ProviderID string
	ExternalID string
	Title      string
	Year       int // 0 when the provider did not report one
	MediaType  MediaType
	Popularity float64 // provider-declared, used only as tie-break
	Score      float64
}

// Metadata is the resolved detail record for a selected candidate.
type Metadata struct {
	Title        string
	Year         int
	Overview     string
	ArtworkURL   string
	Genres       []string
	EpisodeTitle string // TV only, may stay empty when resolution fails
}

// Match is the selected candidate enriched with full metadata.
// At most one Match exists per Guess; "no match" is represented by nil.
type Match struct {
	Candidate Candidate
	Metadata  Metadata
	Season    *int
	Episode   *int
}

// TechInfo holds technical details read from the media file itself.
// Zero values mean "unknown" and render as empty scheme tokens.
type TechInfo struct {
	Resolution string // e.g. "1080p"
	VideoCodec string // e.g. "HEVC"
	AudioCodec string // e.g. "DTS"
	Channels   string // e.g. "5.1"
}

// RenameResult is the per-file outcome of one rename attempt.
type RenameResult struct {
	OriginalPath    string   `json:"original_path"`
	DestinationPath string   `json:"destination_path,omitempty"`
	Success         bool     `json:"success"`
	Reason          string   `json:"reason,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	DryRun          bool     `json:"dry_run,omitempty"`
}

// Job is one batch rename submission tracked to a terminal state.
// The orchestrator owns it exclusively; readers get snapshots.
type Job struct {
	ID          string   `boltholdKey:"ID"`
	State       JobState `boltholdIndex:"State"`
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Files      []string
	Scheme     string
	OutputDir  string
	Operation  Operation
	DryRun     bool
	WebhookURL string

	Total     int
	Processed int
	Results   []RenameResult
	Error     string // fatal job error, empty unless State is Failed
}

// HistoryEntry records one completed rename so it can be undone.
type HistoryEntry struct {
	ID              uint64 `boltholdKey:"ID"`
	OriginalPath    string
	DestinationPath string
	Timestamp       time.Time
	Undone          bool
	UndoneAt        *time.Time
}

// Preset is a user-saved naming scheme stored by name.
type Preset struct {
	Name      string `boltholdKey:"Name"`
	Scheme    string
	UpdatedAt time.Time
}
