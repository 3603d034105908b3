package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

var episodeNumber = regexp.MustCompile(`\d+`)

type NextEpisode struct {
	Catalog ports.Catalog
}

// Execute returns the episode that follows currentPath in its season. The
// bool is false when the current episode is the last one or is not listed.
func (uc NextEpisode) Execute(ctx context.Context, currentPath string) (domain.Episode, bool, error) {
	ep, err := domain.ParseEpisodePath(currentPath)
	if err != nil {
		return domain.Episode{}, false, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if uc.Catalog == nil {
		return domain.Episode{}, false, errors.New("catalog not configured")
	}

	seasons, err := uc.Catalog.Seasons(ctx, ep.Series)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Episode{}, false, err
		}
		return domain.Episode{}, false, wrapIO(err)
	}

	var episodes []domain.Episode
	found := false
	for _, s := range seasons {
		if s.Season == ep.Season {
			episodes = s.Episodes
			found = true
			break
		}
	}
	if !found {
		return domain.Episode{}, false, fmt.Errorf("%w: season %q of %q", domain.ErrNotFound, ep.Season, ep.Series)
	}

	ordered := SortEpisodes(episodes)
	for i, candidate := range ordered {
		if candidate.Path == ep.File || strings.HasSuffix(candidate.Path, "/"+ep.File) {
			if i+1 < len(ordered) {
				return ordered[i+1], true, nil
			}
			return domain.Episode{}, false, nil
		}
	}
	return domain.Episode{}, false, nil
}

// SortEpisodes returns a copy ordered by the first number in each title.
// Titles without a number count as 0; ties keep catalog order.
func SortEpisodes(episodes []domain.Episode) []domain.Episode {
	out := make([]domain.Episode, len(episodes))
	copy(out, episodes)
	sort.SliceStable(out, func(i, j int) bool {
		return titleNumber(out[i].Title) < titleNumber(out[j].Title)
	})
	return out
}

func titleNumber(title string) int64 {
	m := episodeNumber.FindString(title)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
