package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

// DefaultWindow is how long a playback start suppresses further starts of the
// same file by the same user.
const DefaultWindow = 60 * time.Second

// Publisher receives every playback start that was actually recorded.
type Publisher interface {
	PublishPlayback(entry domain.StreamLogEntry)
}

// Logger records playback starts. Checks run in order and the first one that
// reports a recent start wins: the per-process window, the optional shared
// window, then the repository. Two instances without a shared window can
// still both pass the repository check for the same start.
type Logger struct {
	repo      ports.StreamLogRepository
	local     *localWindow
	shared    Window
	publisher Publisher
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Logger)

func WithWindow(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithSharedWindow(w Window) Option {
	return func(l *Logger) { l.shared = w }
}

func WithPublisher(p Publisher) Option {
	return func(l *Logger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLogger(repo ports.StreamLogRepository, opts ...Option) *Logger {
	l := &Logger{
		repo:   repo,
		window: DefaultWindow,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.local = newLocalWindow(l.now)
	return l
}

// LogPlaybackStart records entry unless the same user started the same file
// within the window. It reports whether a new entry was written.
func (l *Logger) LogPlaybackStart(ctx context.Context, entry domain.StreamLogEntry) (bool, error) {
	if entry.UserEmail == "" || entry.FileName == "" {
		return false, fmt.Errorf("%w: playback log needs user and file", domain.ErrInvalidInput)
	}
	now := l.now()
	entry.CreatedAt = now
	key := entry.UserEmail + "\x00" + entry.FileName

	if ok, _ := l.local.Acquire(ctx, key, l.window); !ok {
		metrics.PlaybackStartsTotal.WithLabelValues("deduplicated").Inc()
		return false, nil
	}

	logged, err := l.record(ctx, key, entry, now)
	if err != nil {
		l.local.release(key)
		metrics.PlaybackStartsTotal.WithLabelValues("failed").Inc()
		return false, err
	}
	if !logged {
		// The local claim only stands for entries written by this instance.
		l.local.release(key)
		metrics.PlaybackStartsTotal.WithLabelValues("deduplicated").Inc()
		return false, nil
	}

	metrics.PlaybackStartsTotal.WithLabelValues("logged").Inc()
	l.logger.Debug("playback start logged",
		slog.String("user", entry.UserEmail),
		slog.String("file", entry.FileName),
		slog.String("type", string(entry.Type)),
	)
	if l.publisher != nil {
		l.publisher.PublishPlayback(entry)
	}
	return true, nil
}

func (l *Logger) record(ctx context.Context, key string, entry domain.StreamLogEntry, now time.Time) (bool, error) {
	claimed := false
	if l.shared != nil {
		acquired, err := l.shared.Acquire(ctx, key, l.window)
		if err != nil {
			// The repository check below still applies.
			l.logger.Warn("shared playback window unavailable", slog.String("error", err.Error()))
		} else if !acquired {
			return false, nil
		}
		claimed = acquired
	}

	logged, err := l.insertIfAbsent(ctx, entry, now)
	if claimed && !logged {
		l.releaseShared(ctx, key)
	}
	return logged, err
}

func (l *Logger) insertIfAbsent(ctx context.Context, entry domain.StreamLogEntry, now time.Time) (bool, error) {
	recent, err := l.repo.HasRecent(ctx, entry.UserEmail, entry.FileName, now.Add(-l.window))
	if err != nil {
		return false, fmt.Errorf("check recent playback: %w", err)
	}
	if recent {
		return false, nil
	}

	if err := l.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("insert playback log: %w", err)
	}
	return true, nil
}

func (l *Logger) releaseShared(ctx context.Context, key string) {
	if err := l.shared.Release(ctx, key); err != nil {
		l.logger.Warn("release shared playback claim failed", slog.String("error", err.Error()))
	}
}
