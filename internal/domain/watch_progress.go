package domain

import "time"

const (
	// WatchedRatio is the fraction past which an item counts as fully watched.
	WatchedRatio = 0.96
	// StartedThreshold is the playback time in seconds under which a record
	// is treated as not started.
	StartedThreshold = 1.0
)

type WatchState string

const (
	WatchNotStarted WatchState = "not_started"
	WatchInProgress WatchState = "in_progress"
	WatchWatched    WatchState = "watched"
)

type WatchProgress struct {
	ID        string      `json:"id"`
	UserEmail string      `json:"userEmail"`
	FileName  string      `json:"fileName"`
	FullPath  string      `json:"fullPath,omitempty"`
	Time      float64     `json:"time"`
	Duration  float64     `json:"duration"`
	Type      ContentType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ProgressUpdate is one save tick from a player. An empty FullPath leaves the
// stored path untouched.
type ProgressUpdate struct {
	UserEmail string
	FileName  string
	FullPath  string
	Time      float64
	Duration  float64
	Type      ContentType
}

func (p WatchProgress) Ratio() float64 {
	if p.Duration <= 0 {
		return 0
	}
	r := p.Time / p.Duration
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func (p WatchProgress) Started() bool {
	return p.Time >= StartedThreshold
}

func (p WatchProgress) Watched() bool {
	return p.Duration > 0 && p.Time/p.Duration > WatchedRatio
}

func (p WatchProgress) State() WatchState {
	switch {
	case p.Watched():
		return WatchWatched
	case p.Started():
		return WatchInProgress
	default:
		return WatchNotStarted
	}
}

// EpisodePath returns the structured identifier for series records.
func (p WatchProgress) EpisodePath() (EpisodePath, bool) {
	if p.Type != ContentSeries || p.FullPath == "" {
		return EpisodePath{}, false
	}
	ep, err := ParseEpisodePath(p.FullPath)
	if err != nil {
		return EpisodePath{}, false
	}
	return ep, true
}
