package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mediavault/internal/domain"
)

var episodeExt = regexp.MustCompile(`(?i)\.(mp4|mkv|avi)$`)

// Enumerator lists series, seasons and episodes straight from the series root.
type Enumerator struct {
	root string
}

func NewEnumerator(root string) *Enumerator {
	root = filepath.Clean(strings.TrimSpace(root))
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Enumerator{root: root}
}

func (e *Enumerator) Root() string {
	return e.root
}

// ListSeries returns the top-level directories of the series root by name.
func (e *Enumerator) ListSeries(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return nil, fmt.Errorf("read series root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Seasons lists the season directories of a series ordered by the number in
// their name. Episodes keep directory order and only video files are kept.
func (e *Enumerator) Seasons(ctx context.Context, seriesName string) ([]domain.Season, error) {
	rel, ok := cleanSeriesName(seriesName)
	if !ok {
		return nil, fmt.Errorf("%w: series %q", domain.ErrNotFound, seriesName)
	}
	seriesDir := filepath.Join(e.root, filepath.FromSlash(rel))

	entries, err := os.ReadDir(seriesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(seriesDir) {
			return nil, fmt.Errorf("%w: series %q", domain.ErrNotFound, seriesName)
		}
		return nil, fmt.Errorf("read series %q: %w", seriesName, err)
	}

	var seasonDirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			seasonDirs = append(seasonDirs, entry.Name())
		}
	}
	sortSeasons(seasonDirs)

	seasons := make([]domain.Season, 0, len(seasonDirs))
	for _, name := range seasonDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := os.ReadDir(filepath.Join(seriesDir, name))
		if err != nil {
			return nil, fmt.Errorf("read season %q: %w", name, err)
		}
		episodes := make([]domain.Episode, 0, len(files))
		for _, f := range files {
			if f.IsDir() || !episodeExt.MatchString(f.Name()) {
				continue
			}
			episodes = append(episodes, domain.Episode{
				Title: strings.TrimSuffix(f.Name(), path.Ext(f.Name())),
				Path:  path.Join(rel, name, f.Name()),
			})
		}
		seasons = append(seasons, domain.Season{Season: name, Episodes: episodes})
	}
	return seasons, nil
}

func isNotDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func cleanSeriesName(raw string) (string, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if s == "" || strings.HasPrefix(s, "/") || strings.ContainsRune(s, 0) {
		return "", false
	}
	c := path.Clean(s)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	return c, true
}

// sortSeasons orders by the digits in each name read as one number, so
// "Season 2" sorts before "Season 10". Names without digits go last.
func sortSeasons(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, oki := seasonNumber(names[i])
		nj, okj := seasonNumber(names[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return names[i] < names[j]
		}
	})
}

func seasonNumber(name string) (int, bool) {
	var b strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
