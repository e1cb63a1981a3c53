package server

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnsatisfiableRange marks a Range header whose bounds cannot be
// satisfied against the file size. It maps to 416.
var ErrUnsatisfiableRange = errors.New("unsatisfiable byte range")

// ByteRange is an inclusive byte interval within a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the range.
func (b ByteRange) Length() int64 {
	return b.End - b.Start + 1
}

// ContentRange formats the Content-Range header value for a 206.
func (b ByteRange) ContentRange(size int64) string {
	return "bytes " + strconv.FormatInt(b.Start, 10) + "-" + strconv.FormatInt(b.End, 10) +
		"/" + strconv.FormatInt(size, 10)
}

// ParseRange computes the byte interval for a Range header against a
// file of the given size. Both bounds are inclusive. An absent end
// defaults to size-1; an absent start means "last end bytes", with the
// start clamped to 0 when the suffix exceeds the file.
//
// A nil range with a nil error means no (or an ignorable) Range header:
// the caller serves the whole file. ErrUnsatisfiableRange means the
// bounds are out of range and the caller responds 416.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil, nil
	}

	spec := strings.TrimPrefix(header, "bytes=")
	// Only a single range is supported; a multipart range request is
	// resolved as its first part.
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}

	start, hasStart := parseBound(startStr)
	end, hasEnd := parseBound(endStr)

	switch {
	case !hasStart && !hasEnd:
		// "bytes=-" carries no bounds; ignore the header.
		return nil, nil
	case !hasStart:
		// Suffix form: last `end` bytes.
		if end == 0 {
			return nil, ErrUnsatisfiableRange
		}
		start = size - end
		if start < 0 {
			start = 0
		}
		end = size - 1
	case !hasEnd:
		end = size - 1
	default:
		if end > size-1 {
			end = size - 1
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiableRange
	}

	return &ByteRange{Start: start, End: end}, nil
}

// parseBound parses one side of a range spec. An empty or malformed
// bound counts as absent.
func parseBound(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
