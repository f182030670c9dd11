package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Boundary is a position in a channel's history. The zero value means
// "newer than everything".
type Boundary struct {
	At  time.Time
	Seq int64
}

func (b Boundary) IsZero() bool { return b.At.IsZero() && b.Seq == 0 }

// Before reports whether b is strictly older than o.
// A boundary without a sequence compares on the timestamp alone.
func (b Boundary) Before(o Boundary) bool {
	if !b.At.Equal(o.At) {
		return b.At.Before(o.At)
	}
	if b.Seq == 0 || o.Seq == 0 {
		return false
	}
	return b.Seq < o.Seq
}

// EncodeCursor renders b as an opaque url-safe token.
func EncodeCursor(b Boundary) string {
	if b.IsZero() {
		return ""
	}
	raw := strconv.FormatInt(b.At.UnixNano(), 10) + "." + strconv.FormatInt(b.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. The empty token
// decodes to the zero boundary.
func DecodeCursor(s string) (Boundary, error) {
	if s == "" {
		return Boundary{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Boundary{}, fmt.Errorf("%w: %v", ErrCursor, err)
	}
	ts, seq, ok := strings.Cut(string(raw), ".")
	if !ok {
		return Boundary{}, ErrCursor
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || nanos <= 0 {
		return Boundary{}, ErrCursor
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 0 {
		return Boundary{}, ErrCursor
	}
	return Boundary{At: time.Unix(0, nanos).UTC(), Seq: n}, nil
}
