// Package version implements the pure version-number arithmetic for
// sub-prompts and master prompts. Versions are dot-separated sequences of
// positive integers ("1", "4.3", "4.3.1"). The package does no I/O.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// First is the version assigned to the first revision of a type and to the
// first master prompt.
const First = "1"

// ErrMalformed marks a version string that is not a dot-separated sequence of
// positive integers. It never occurs against self-produced data and indicates
// database corruption.
var ErrMalformed = errors.New("malformed version string")

// Parse splits a version string into its integer segments.
func Parse(v string) ([]int, error) {
	if v == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	parts := strings.Split(v, ".")
	segments := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		// Atoi tolerates leading zeros and a plus sign; a segment that does
		// not re-render to itself is not one we produced.
		if err != nil || n <= 0 || strconv.Itoa(n) != part {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, v)
		}
		segments[i] = n
	}
	return segments, nil
}

// Increment bumps the last segment of the parent version, keeping the segment
// count. An empty parent means the first revision of its lineage and yields
// First.
func Increment(parent string) (string, error) {
	if parent == "" {
		return First, nil
	}
	segments, err := Parse(parent)
	if err != nil {
		return "", err
	}
	segments[len(segments)-1]++
	return join(segments), nil
}

// Branch appends a new final segment 1 to the parent version.
func Branch(parent string) (string, error) {
	if _, err := Parse(parent); err != nil {
		return "", err
	}
	return parent + "." + First, nil
}

// SegmentCount reports the number of segments in a version string.
func SegmentCount(v string) (int, error) {
	segments, err := Parse(v)
	if err != nil {
		return 0, err
	}
	return len(segments), nil
}

// IsBranched reports whether next diverged from prev's lineage, i.e. next has
// strictly more segments than prev.
func IsBranched(next, prev string) (bool, error) {
	n, err := SegmentCount(next)
	if err != nil {
		return false, err
	}
	p, err := SegmentCount(prev)
	if err != nil {
		return false, err
	}
	return n > p, nil
}

// Compare orders two versions segment-by-segment, treating missing segments
// as zero (so "4.3" < "4.3.1" < "4.4"). It returns -1, 0 or 1.
func Compare(a, b string) (int, error) {
	as, err := Parse(a)
	if err != nil {
		return 0, err
	}
	bs, err := Parse(b)
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

func join(segments []int) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ".")
}
