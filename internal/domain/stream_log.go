package domain

import "time"

type StreamLogEntry struct {
	ID         string      `json:"id"`
	UserEmail  string      `json:"userEmail"`
	UserName   string      `json:"userName"`
	FileName   string      `json:"fileName"`
	SeriesName string      `json:"seriesName,omitempty"`
	Type       ContentType `json:"type"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type StreamLogFilter struct {
	Type  ContentType
	Since time.Time
	Limit int
}

// WatchCount is one row of the top-watched aggregation.
type WatchCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
