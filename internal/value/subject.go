package value

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImmutableMarker is the first segment of every immutable snapshot subject.
const ImmutableMarker = "$"

// Subject is an ordered path of strings addressing one node.
type Subject []string

// S builds a Subject from its segments.
func S(segments ...string) Subject {
	return Subject(segments)
}

// Equal reports whether both subjects have identical segments.
func (s Subject) Equal(other Subject) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders subjects segment by segment; a prefix sorts first.
func (s Subject) Compare(other Subject) int {
	for i := 0; i < len(s) && i < len(other); i++ {
		if c := strings.Compare(s[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(s) < len(other):
		return -1
	case len(s) > len(other):
		return 1
	}
	return 0
}

// Parent returns the subject without its last segment.
// The parent of a single-segment subject is the empty subject.
func (s Subject) Parent() Subject {
	if len(s) == 0 {
		return nil
	}
	return s.Clone()[:len(s)-1]
}

// Last returns the final segment, or "" for the empty subject.
func (s Subject) Last() string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// Child returns a new subject extended by path.
func (s Subject) Child(path ...string) Subject {
	out := make(Subject, 0, len(s)+len(path))
	out = append(out, s...)
	return append(out, path...)
}

// Clone returns a copy that shares no backing array with s.
func (s Subject) Clone() Subject {
	if s == nil {
		return nil
	}
	out := make(Subject, len(s))
	copy(out, s)
	return out
}

// IsImmutable reports whether s addresses an immutable snapshot node.
func (s Subject) IsImmutable() bool {
	return len(s) == 2 && s[0] == ImmutableMarker
}

// HasPrefix reports whether s starts with all segments of prefix.
func (s Subject) HasPrefix(prefix Subject) bool {
	if len(prefix) > len(s) {
		return false
	}
	return s[:len(prefix)].Equal(prefix)
}

func (s Subject) String() string {
	return strings.Join(s, "/")
}

// MarshalJSON encodes the subject as a JSON array; nil encodes as [].
func (s Subject) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON decodes a JSON array of strings.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var segments []string
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if segments == nil {
		segments = []string{}
	}
	*s = segments
	return nil
}

// Key encodes a subject into a string that is injective and preserves the
// segment-wise ordering of subjects under plain byte comparison.
//
// Every segment is terminated by 0x00 0x01; an embedded 0x00 byte is written
// as 0x00 0xFF. A terminator therefore sorts before any continuation of the
// segment, and a 0x00 byte is always followed by 0x01 or 0xFF.
func Key(s Subject) string {
	var b strings.Builder
	for _, seg := range s {
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			b.WriteByte(c)
			if c == 0x00 {
				b.WriteByte(0xff)
			}
		}
		b.WriteByte(0x00)
		b.WriteByte(0x01)
	}
	return b.String()
}

// ParseKey decodes a key produced by Key.
func ParseKey(key string) (Subject, error) {
	out := Subject{}
	var seg []byte
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != 0x00 {
			seg = append(seg, c)
			continue
		}
		if i+1 >= len(key) {
			return nil, fmt.Errorf("parse key: truncated escape at %d", i)
		}
		i++
		switch key[i] {
		case 0xff:
			seg = append(seg, 0x00)
		case 0x01:
			out = append(out, string(seg))
			seg = seg[:0]
		default:
			return nil, fmt.Errorf("parse key: invalid escape 0x%02x at %d", key[i], i)
		}
	}
	if len(seg) > 0 {
		return nil, fmt.Errorf("parse key: unterminated segment %q", seg)
	}
	return out, nil
}
