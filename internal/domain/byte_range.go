package domain

import "fmt"

// DefaultChunkSize bounds the window served when a request carries no Range header.
const DefaultChunkSize int64 = 1 << 20

// ByteRange is an inclusive [Start, End] window into a file of Size bytes.
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Size  int64 `json:"size"`
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Size)
}

func (r ByteRange) Valid() bool {
	return r.Size > 0 && r.Start >= 0 && r.Start <= r.End && r.End <= r.Size-1
}
