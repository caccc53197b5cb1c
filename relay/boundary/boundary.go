// Package boundary locates multipart boundary lines inside raw body chunks so
// the relay can start new consumers on a frame boundary.
//
// A multipart "replace" stream (multipart/x-mixed-replace, e.g. motion-JPEG)
// introduces each part with a delimiter line:
//
//	--<boundary>\r\n
//	Content-Type: image/jpeg\r\n
//	\r\n
//	<jpeg bytes>
//
// Split tags the bytes of every chunk as either continuing the current part or
// starting a new one. Detection is per chunk: a delimiter that straddles two
// chunks is not found, and the stream stays misaligned for joining consumers
// until the next delimiter that fits inside one chunk.
package boundary

import (
	"bytes"
	"strings"
)

// MediaType is the media type that declares a multipart replace stream.
const MediaType = "multipart/x-mixed-replace"

// Pattern is the exact delimiter line that introduces a part, including the
// leading "--" and trailing CRLF. A nil Pattern means the upstream did not
// declare a boundary.
type Pattern []byte

// String returns the delimiter without its trailing CRLF.
func (p Pattern) String() string {
	return strings.TrimSuffix(string(p), "\r\n")
}

// Segment is a contiguous slice of a chunk. FrameStart is set when Data begins
// with (and holds) a delimiter line, or when there is no boundary configured.
type Segment struct {
	Data       []byte
	FrameStart bool
}

// Configure derives a Pattern from a Content-Type header value. It returns nil
// when the media type is not multipart/x-mixed-replace or when no usable
// boundary parameter is present.
func Configure(contentType string) Pattern {
	ct := strings.TrimSpace(contentType)
	if len(ct) < len(MediaType) || !strings.EqualFold(ct[:len(MediaType)], MediaType) {
		return nil
	}

	params := ct[len(MediaType):]
	if params != "" && params[0] != ';' && params[0] != ' ' {
		return nil
	}

	for _, param := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "boundary") {
			continue
		}

		value = strings.Trim(value, ` "`)
		if value == "" {
			return nil
		}

		return Pattern("--" + value + "\r\n")
	}

	return nil
}

// Split cuts chunk into at most three segments around the first occurrence of
// p. Empty segments are never returned, and the segments concatenate back to
// chunk. With a nil pattern the whole chunk is a single frame-start segment.
func Split(chunk []byte, p Pattern) []Segment {
	if len(chunk) == 0 {
		return nil
	}

	if len(p) == 0 {
		return []Segment{{Data: chunk, FrameStart: true}}
	}

	// Cameras usually flush right after writing the delimiter of the next part.
	if bytes.HasSuffix(chunk, p) {
		return compact(
			Segment{Data: chunk[:len(chunk)-len(p)]},
			Segment{Data: chunk[len(chunk)-len(p):], FrameStart: true},
		)
	}

	pos := bytes.Index(chunk, p)
	if pos < 0 {
		return []Segment{{Data: chunk}}
	}

	end := pos + len(p)
	return compact(
		Segment{Data: chunk[:pos]},
		Segment{Data: chunk[pos:end], FrameStart: true},
		Segment{Data: chunk[end:]},
	)
}

func compact(segs ...Segment) []Segment {
	out := segs[:0]
	for _, s := range segs {
		if len(s.Data) > 0 {
			out = append(out, s)
		}
	}
	return out
}
