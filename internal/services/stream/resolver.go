package stream

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"mediavault/internal/domain"
)

var ErrInvalidPath = errors.New("invalid media path")

// Resolved is a media file that passed path checks and exists on disk.
type Resolved struct {
	Path    string
	Size    int64
	ModTime time.Time
	Ref     domain.ContentRef
}

// Resolver maps content references onto the movie and series roots. It never
// returns a path outside the configured root.
type Resolver struct {
	moviesRoot string
	seriesRoot string
}

func NewResolver(moviesRoot, seriesRoot string) *Resolver {
	return &Resolver{
		moviesRoot: cleanRoot(moviesRoot),
		seriesRoot: cleanRoot(seriesRoot),
	}
}

func cleanRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	root = filepath.Clean(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return root
}

func (r *Resolver) SeriesRoot() string {
	return r.seriesRoot
}

// ResolveMovie reduces folder and filename to their base names before joining
// them under the movie root.
func (r *Resolver) ResolveMovie(folder, filename string) (Resolved, error) {
	safeFolder, ok := baseSegment(folder)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: folder %q", ErrInvalidPath, folder)
	}
	safeFile, ok := baseSegment(filename)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: filename %q", ErrInvalidPath, filename)
	}

	full, err := joinUnder(r.moviesRoot, safeFolder, safeFile)
	if err != nil {
		return Resolved{}, err
	}
	return statMedia(full, domain.MovieRef(safeFolder, safeFile))
}

// ResolveEpisode accepts a slash-delimited "series/season/file" path relative
// to the series root.
func (r *Resolver) ResolveEpisode(relPath string) (Resolved, error) {
	cleaned, err := cleanRelative(relPath)
	if err != nil {
		return Resolved{}, err
	}
	ep, err := domain.ParseEpisodePath(cleaned)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	full, err := joinUnder(r.seriesRoot, filepath.FromSlash(cleaned))
	if err != nil {
		return Resolved{}, err
	}
	return statMedia(full, domain.EpisodeRef(ep))
}

func baseSegment(raw string) (string, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if s == "" || strings.ContainsRune(s, 0) {
		return "", false
	}
	s = path.Base(s)
	switch s {
	case ".", "..", "/":
		return "", false
	}
	return s, true
}

func cleanRelative(raw string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if s == "" || strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.HasPrefix(s, "/") || filepath.VolumeName(s) != "" {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidPath, raw)
	}
	c := path.Clean(s)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q escapes media root", ErrInvalidPath, raw)
	}
	return c, nil
}

func joinUnder(root string, elems ...string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: media root not configured", ErrInvalidPath)
	}
	joined := filepath.Join(append([]string{root}, elems...)...)
	if joined == root || !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes media root", ErrInvalidPath)
	}
	return joined, nil
}

func statMedia(full string, ref domain.ContentRef) (Resolved, error) {
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolved{}, fmt.Errorf("%w: %s", domain.ErrNotFound, filepath.Base(full))
		}
		return Resolved{}, err
	}
	if info.IsDir() {
		return Resolved{}, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, filepath.Base(full))
	}
	return Resolved{
		Path:    full,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Ref:     ref,
	}, nil
}
