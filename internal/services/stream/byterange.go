package stream

import (
	"errors"
	"strconv"
	"strings"

	"mediavault/internal/domain"
)

var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// DefaultRange is the window served when the client sent no usable Range header.
func DefaultRange(size int64) domain.ByteRange {
	end := domain.DefaultChunkSize - 1
	if end > size-1 {
		end = size - 1
	}
	return domain.ByteRange{Start: 0, End: end, Size: size}
}

// Negotiate turns a Range header into a concrete window of a file of the given
// size. The bool result is false when the window was synthesized because the
// header was absent or unparseable. Only the first clause of a multi-range
// header is honoured. A start beyond the last byte is rejected rather than
// clamped.
func Negotiate(header string, size int64) (domain.ByteRange, bool, error) {
	if size <= 0 {
		return domain.ByteRange{Size: size}, false, ErrRangeNotSatisfiable
	}

	spec, ok := parseRangeHeader(header)
	if !ok {
		return DefaultRange(size), false, nil
	}

	last := size - 1
	start := int64(0)
	if spec.hasStart {
		start = spec.start
	}
	end := last
	if spec.hasEnd && spec.end < last {
		end = spec.end
	}

	if start > last || end < start {
		return domain.ByteRange{Size: size}, true, ErrRangeNotSatisfiable
	}
	return domain.ByteRange{Start: start, End: end, Size: size}, true, nil
}

type rangeSpec struct {
	start    int64
	end      int64
	hasStart bool
	hasEnd   bool
}

func parseRangeHeader(value string) (rangeSpec, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return rangeSpec{}, false
	}
	unit, set, found := strings.Cut(value, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return rangeSpec{}, false
	}

	first, _, _ := strings.Cut(set, ",")
	startStr, endStr, found := strings.Cut(strings.TrimSpace(first), "-")
	if !found {
		return rangeSpec{}, false
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if startStr == "" && endStr == "" {
		return rangeSpec{}, false
	}

	var spec rangeSpec
	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || v < 0 {
			return rangeSpec{}, false
		}
		spec.start, spec.hasStart = v, true
	}
	if endStr != "" {
		v, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || v < 0 {
			return rangeSpec{}, false
		}
		spec.end, spec.hasEnd = v, true
	}
	return spec, true
}
