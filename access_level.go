package fleetacl

import (
	"fmt"
	"strings"
)

// AccessLevel is the ordered permission grant attached to an ACL entry.
// Levels compare by integer value; a higher level implies every lower one.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessAll
)

// AccessLevelOf maps a stored integer to an AccessLevel. Values outside the
// known range (e.g. rows written by an older enum) map to AccessNone rather
// than failing.
func AccessLevelOf(v int) AccessLevel {
	if v < int(AccessNone) || v > int(AccessAll) {
		return AccessNone
	}
	return AccessLevel(v)
}

// OkRead reports whether the level permits viewing.
func (l AccessLevel) OkRead() bool { return l >= AccessRead }

// OkWrite reports whether the level permits editing.
func (l AccessLevel) OkWrite() bool { return l >= AccessWrite }

// OkAll reports whether the level permits create/delete. Note that AccessAll
// also implies read even when write was never separately granted.
func (l AccessLevel) OkAll() bool { return l >= AccessAll }

// Clamp limits the level to max.
func (l AccessLevel) Clamp(max AccessLevel) AccessLevel {
	if l > max {
		return max
	}
	return l
}

func (l AccessLevel) String() string {
	switch l {
	case AccessNone:
		return "none"
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessAll:
		return "all"
	default:
		return "none"
	}
}

// ParseAccessLevel parses a level name as produced by String.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return AccessNone, nil
	case "read", "view":
		return AccessRead, nil
	case "write", "edit":
		return AccessWrite, nil
	case "all":
		return AccessAll, nil
	}
	return AccessNone, fmt.Errorf("%w: unknown access level %q", ErrInvalidArgument, s)
}

// MarshalYAML / UnmarshalYAML let seed configs spell levels by name.
func (l AccessLevel) MarshalYAML() (any, error) { return l.String(), nil }

func (l *AccessLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		v, perr := ParseAccessLevel(s)
		if perr != nil {
			return perr
		}
		*l = v
		return nil
	}
	var n int
	if err := unmarshal(&n); err != nil {
		return err
	}
	*l = AccessLevelOf(n)
	return nil
}
