package domain

import (
	"errors"
	"path"
	"strings"
)

type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentSeries ContentType = "series"
)

func (t ContentType) Valid() bool {
	return t == ContentMovie || t == ContentSeries
}

// EpisodePath identifies a series episode by its three components. The wire form
// is "series/season/file" where the series part may itself contain slashes.
type EpisodePath struct {
	Series string
	Season string
	File   string
}

var errShortEpisodePath = errors.New("episode path needs series, season and file")

func ParseEpisodePath(raw string) (EpisodePath, error) {
	trimmed := strings.Trim(strings.ReplaceAll(raw, "\\", "/"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 3 {
		return EpisodePath{}, errShortEpisodePath
	}
	ep := EpisodePath{
		Series: strings.Join(parts[:len(parts)-2], "/"),
		Season: parts[len(parts)-2],
		File:   parts[len(parts)-1],
	}
	if ep.Series == "" || ep.Season == "" || ep.File == "" {
		return EpisodePath{}, errShortEpisodePath
	}
	return ep, nil
}

func (p EpisodePath) String() string {
	return path.Join(p.Series, p.Season, p.File)
}

func (p EpisodePath) IsZero() bool {
	return p.Series == "" && p.Season == "" && p.File == ""
}

// ContentRef is what a stream request points at: a movie file inside a folder,
// or a series episode.
type ContentRef struct {
	Type     ContentType
	Folder   string
	Filename string
	Episode  EpisodePath
}

func MovieRef(folder, filename string) ContentRef {
	return ContentRef{Type: ContentMovie, Folder: folder, Filename: filename}
}

func EpisodeRef(ep EpisodePath) ContentRef {
	return ContentRef{Type: ContentSeries, Episode: ep, Filename: ep.File}
}

// LogName is the file name recorded in playback logs. Movies are logged under
// their folder (the display title), episodes under their file name.
func (r ContentRef) LogName() string {
	if r.Type == ContentMovie {
		return r.Folder
	}
	return r.Episode.File
}

func (r ContentRef) SeriesName() string {
	if r.Type != ContentSeries {
		return ""
	}
	return path.Base(r.Episode.Series)
}
