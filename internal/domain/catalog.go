package domain

type Episode struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

type Season struct {
	Season   string    `json:"season"`
	Episodes []Episode `json:"episodes"`
}

type Series struct {
	Series  string   `json:"series"`
	Seasons []Season `json:"seasons"`
}

// EpisodeState pairs a catalog episode with the viewer's progress on it.
type EpisodeState struct {
	Episode
	Season   string     `json:"season"`
	State    WatchState `json:"state"`
	Time     float64    `json:"time"`
	Duration float64    `json:"duration"`
}
