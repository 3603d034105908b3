package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

// SaveProgressInput is one progress tick as sent by a player. Time is a
// pointer so that a missing value can be told apart from zero.
type SaveProgressInput struct {
	FileName string
	Time     *float64
	Duration float64
	Type     domain.ContentType
	FullPath string
}

type Progress struct {
	Repo    ports.WatchProgressRepository
	Catalog ports.Catalog
}

func (uc Progress) Save(ctx context.Context, userEmail string, in SaveProgressInput) error {
	update, err := normalizeProgress(userEmail, in)
	if err != nil {
		return err
	}
	return wrapRepo(uc.Repo.Upsert(ctx, update))
}

func normalizeProgress(userEmail string, in SaveProgressInput) (domain.ProgressUpdate, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" || in.Time == nil {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: fileName and time are required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(userEmail) == "" {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: user email is required", domain.ErrInvalidInput)
	}
	t := *in.Time
	if !validSeconds(t) || !validSeconds(in.Duration) {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: time and duration must be finite and non-negative", domain.ErrInvalidInput)
	}

	typ := in.Type
	fullPath := strings.TrimSpace(in.FullPath)
	if typ == "" {
		typ = domain.ContentMovie
		if fullPath != "" {
			typ = domain.ContentSeries
		}
	}
	if !typ.Valid() {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidInput, typ)
	}

	return domain.ProgressUpdate{
		UserEmail: userEmail,
		FileName:  fileName,
		FullPath:  fullPath,
		Time:      t,
		Duration:  in.Duration,
		Type:      typ,
	}, nil
}

func validSeconds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Get returns the stored progress and whether one exists.
func (uc Progress) Get(ctx context.Context, userEmail, fileName string) (domain.WatchProgress, bool, error) {
	if strings.TrimSpace(fileName) == "" {
		return domain.WatchProgress{}, false, fmt.Errorf("%w: fileName is required", domain.ErrInvalidInput)
	}
	p, err := uc.Repo.Get(ctx, userEmail, fileName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WatchProgress{}, false, nil
		}
		return domain.WatchProgress{}, false, wrapRepo(err)
	}
	return p, true, nil
}

// LastSeriesEpisode returns the most recently updated episode record of the
// series, or domain.ErrNotFound.
func (uc Progress) LastSeriesEpisode(ctx context.Context, userEmail, seriesName string) (domain.WatchProgress, error) {
	seriesName, err := requireSeriesName(seriesName)
	if err != nil {
		return domain.WatchProgress{}, err
	}
	p, err := uc.Repo.LastSeriesEpisode(ctx, userEmail, seriesName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.WatchProgress{}, err
		}
		return domain.WatchProgress{}, wrapRepo(err)
	}
	return p, nil
}

func (uc Progress) ListForSeries(ctx context.Context, userEmail, seriesName string) ([]domain.WatchProgress, error) {
	seriesName, err := requireSeriesName(seriesName)
	if err != nil {
		return nil, err
	}
	records, err := uc.Repo.ListForSeries(ctx, userEmail, seriesName)
	if err != nil {
		return nil, wrapRepo(err)
	}
	if records == nil {
		records = []domain.WatchProgress{}
	}
	return records, nil
}

// SeriesState walks the catalog of a series and classifies every episode for
// the user. Records are matched on full path, ignoring case.
func (uc Progress) SeriesState(ctx context.Context, userEmail, seriesName string) ([]domain.EpisodeState, error) {
	seriesName, err := requireSeriesName(seriesName)
	if err != nil {
		return nil, err
	}
	if uc.Catalog == nil {
		return nil, errors.New("catalog not configured")
	}
	seasons, err := uc.Catalog.Seasons(ctx, seriesName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, wrapIO(err)
	}
	records, err := uc.ListForSeries(ctx, userEmail, seriesName)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]domain.WatchProgress, len(records))
	for _, r := range records {
		byPath[strings.ToLower(r.FullPath)] = r
	}

	var states []domain.EpisodeState
	for _, season := range seasons {
		for _, ep := range season.Episodes {
			st := domain.EpisodeState{Episode: ep, Season: season.Season, State: domain.WatchNotStarted}
			if r, ok := byPath[strings.ToLower(ep.Path)]; ok {
				st.State = r.State()
				st.Time = r.Time
				st.Duration = r.Duration
			}
			states = append(states, st)
		}
	}
	if states == nil {
		states = []domain.EpisodeState{}
	}
	return states, nil
}

func requireSeriesName(seriesName string) (string, error) {
	seriesName = strings.Trim(strings.TrimSpace(seriesName), "/")
	if seriesName == "" {
		return "", fmt.Errorf("%w: seriesName is required", domain.ErrInvalidInput)
	}
	return seriesName, nil
}
