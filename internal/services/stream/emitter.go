package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"mediavault/internal/domain"
)

// ErrFileUnavailable means the file could not be opened or positioned. Nothing
// has been written to the response when it is returned.
var ErrFileUnavailable = errors.New("media file unavailable")

const (
	mediaContentType = "video/mp4"
	copyBufferSize   = 256 << 10
)

var copyBuffers = sync.Pool{
	New: func() any {
		buf := make([]byte, copyBufferSize)
		return &buf
	},
}

// SetHeaders writes the partial-content headers for rng. Synthesized windows
// also get Cache-Control: no-cache.
func SetHeaders(h http.Header, rng domain.ByteRange, synthesized bool) {
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", mediaContentType)
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	h.Set("Content-Range", rng.ContentRange())
	if synthesized {
		h.Set("Cache-Control", "no-cache")
	}
}

// Emit writes rng of the resolved file as a 206 response. The file is read
// incrementally; at most one copy buffer is held in memory. When withBody is
// false only the headers are sent. Errors after the status line has gone out
// are returned as-is and cannot change the response.
func Emit(w http.ResponseWriter, file Resolved, rng domain.ByteRange, synthesized, withBody bool) (int64, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}
	defer f.Close()

	if rng.Start > 0 {
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return 0, fmt.Errorf("%w: seek: %v", ErrFileUnavailable, err)
		}
	}

	SetHeaders(w.Header(), rng, synthesized)
	w.WriteHeader(http.StatusPartialContent)
	if !withBody {
		return 0, nil
	}

	bufp := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(bufp)

	want := rng.Length()
	n, err := io.CopyBuffer(w, io.LimitReader(f, want), *bufp)
	if err != nil {
		return n, err
	}
	if n < want {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
