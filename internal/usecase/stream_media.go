package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mediavault/internal/domain"
	"mediavault/internal/services/stream"
	"mediavault/internal/telemetry"
)

const activityLogTimeout = 5 * time.Second

// PlaybackRecorder records the start of a playback session.
type PlaybackRecorder interface {
	LogPlaybackStart(ctx context.Context, entry domain.StreamLogEntry) (bool, error)
}

// StreamTarget names the file a stream request points at. Movies use Folder
// and Filename, episodes use Path relative to the series root.
type StreamTarget struct {
	Type     domain.ContentType
	Folder   string
	Filename string
	Path     string
	// Probe marks HEAD requests. They are negotiated like GET but never
	// count as a playback start.
	Probe bool
}

type StreamResult struct {
	File        stream.Resolved
	Range       domain.ByteRange
	Synthesized bool
	Logged      bool
}

type StreamMedia struct {
	Resolver *stream.Resolver
	Activity PlaybackRecorder
	Logger   *slog.Logger
}

// Execute resolves the target, negotiates the range against the file size
// and records a playback start when the window begins at byte zero. On
// stream.ErrRangeNotSatisfiable the result still carries the resolved file.
func (uc StreamMedia) Execute(ctx context.Context, who domain.Principal, target StreamTarget, rangeHeader string) (StreamResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "stream.negotiate")
	defer span.End()

	file, err := uc.resolve(target)
	if err != nil {
		if errors.Is(err, stream.ErrInvalidPath) {
			// Rejected paths look like missing files to the client.
			return StreamResult{}, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return StreamResult{}, err
		}
		return StreamResult{}, wrapIO(err)
	}
	span.SetAttributes(
		attribute.String("media.type", string(file.Ref.Type)),
		attribute.Int64("media.size", file.Size),
	)

	rng, honoured, err := stream.Negotiate(rangeHeader, file.Size)
	if err != nil {
		return StreamResult{File: file, Range: rng}, err
	}
	result := StreamResult{File: file, Range: rng, Synthesized: !honoured}

	if rng.Start == 0 && !target.Probe {
		result.Logged = uc.recordStart(ctx, who, file.Ref)
	}
	return result, nil
}

func (uc StreamMedia) resolve(target StreamTarget) (stream.Resolved, error) {
	if uc.Resolver == nil {
		return stream.Resolved{}, errors.New("resolver not configured")
	}
	switch target.Type {
	case domain.ContentMovie:
		return uc.Resolver.ResolveMovie(target.Folder, target.Filename)
	case domain.ContentSeries:
		return uc.Resolver.ResolveEpisode(target.Path)
	default:
		return stream.Resolved{}, fmt.Errorf("%w: content type %q", stream.ErrInvalidPath, target.Type)
	}
}

// recordStart is best-effort. It survives the client hanging up so that a
// start that reached the server is still counted.
func (uc StreamMedia) recordStart(ctx context.Context, who domain.Principal, ref domain.ContentRef) bool {
	if uc.Activity == nil || who.Email == "" {
		return false
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityLogTimeout)
	defer cancel()

	entry := domain.StreamLogEntry{
		UserEmail:  who.Email,
		UserName:   who.Name,
		FileName:   ref.LogName(),
		SeriesName: ref.SeriesName(),
		Type:       ref.Type,
	}
	logged, err := uc.Activity.LogPlaybackStart(logCtx, entry)
	if err != nil {
		uc.logger().Warn("playback start not recorded",
			slog.String("user", who.Email),
			slog.String("file", entry.FileName),
			slog.String("error", err.Error()),
		)
		return false
	}
	return logged
}

func (uc StreamMedia) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
