package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ArrowScore is the value recorded for one arrow slot.
//
// The zero value is Unset. Ring scores 1 through 10 are stored as their own
// numeric value; Miss and X are distinct variants so that a center shot can be
// told apart from a plain 10.
type ArrowScore uint8

const (
	Unset ArrowScore = 0
	Miss  ArrowScore = 11
	X     ArrowScore = 12
)

// ArrowFromRing returns the score for a ring value between 1 and 10.
func ArrowFromRing(ring int) (ArrowScore, error) {
	if ring < 1 || ring > 10 {
		return Unset, fmt.Errorf("ring value %d out of range 1-10", ring)
	}
	return ArrowScore(ring), nil
}

// Points returns the point value of the arrow. Unset and Miss both score 0.
func (a ArrowScore) Points() int {
	switch {
	case a == X:
		return 10
	case a >= 1 && a <= 10:
		return int(a)
	default:
		return 0
	}
}

// IsCenter reports whether the arrow is an X.
func (a ArrowScore) IsCenter() bool {
	return a == X
}

// IsTenOrBetter reports whether the arrow is a 10 or an X.
func (a ArrowScore) IsTenOrBetter() bool {
	return a == X || a == 10
}

// IsSet reports whether a shot has been recorded in the slot.
func (a ArrowScore) IsSet() bool {
	return a == Miss || a == X || (a >= 1 && a <= 10)
}

// Valid reports whether a is one of the known variants.
func (a ArrowScore) Valid() bool {
	return a == Unset || a.IsSet()
}

// String returns the scorecard token: "X", "M", "1".."10" or "-" when unset.
func (a ArrowScore) String() string {
	switch {
	case a == X:
		return "X"
	case a == Miss:
		return "M"
	case a >= 1 && a <= 10:
		return strconv.Itoa(int(a))
	default:
		return "-"
	}
}

// ParseArrowScore parses a scorecard token. Accepted forms are 1-10, m/M,
// x/X, and "-" or the empty string for an unset slot.
func ParseArrowScore(s string) (ArrowScore, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "-":
		return Unset, nil
	case "M":
		return Miss, nil
	case "X":
		return X, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Unset, fmt.Errorf("invalid arrow score %q (use 1-10, X or M)", s)
	}
	return ArrowFromRing(n)
}

// MarshalJSON encodes rings as numbers, Miss and X as "M" and "X", and
// unset slots as null.
func (a ArrowScore) MarshalJSON() ([]byte, error) {
	switch {
	case a == Unset:
		return []byte("null"), nil
	case a == Miss || a == X:
		return json.Marshal(a.String())
	case a >= 1 && a <= 10:
		return []byte(strconv.Itoa(int(a))), nil
	default:
		return nil, fmt.Errorf("invalid arrow score value %d", uint8(a))
	}
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (a *ArrowScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Unset
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}
		switch strings.ToUpper(token) {
		case "M":
			*a = Miss
		case "X":
			*a = X
		default:
			return fmt.Errorf("invalid arrow score token %q", token)
		}
		return nil
	}
	var ring int
	if err := json.Unmarshal(data, &ring); err != nil {
		return fmt.Errorf("invalid arrow score %s: %w", data, err)
	}
	v, err := ArrowFromRing(ring)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// BowType is the equipment class used for a session.
type BowType string

const (
	Compound BowType = "compound"
	Recurve  BowType = "recurve"
	Barebow  BowType = "barebow"
)

// BowTypes lists every supported bow type.
var BowTypes = []BowType{Compound, Recurve, Barebow}

// Valid reports whether b is a known bow type.
func (b BowType) Valid() bool {
	switch b {
	case Compound, Recurve, Barebow:
		return true
	}
	return false
}

// ParseBowType parses a bow type case-insensitively.
func ParseBowType(s string) (BowType, error) {
	b := BowType(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown bow type %q (use compound, recurve or barebow)", s)
	}
	return b, nil
}

// SessionKind separates practice rounds from tournament rounds.
type SessionKind string

const (
	Practice   SessionKind = "practice"
	Tournament SessionKind = "tournament"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	return k == Practice || k == Tournament
}

// ParseSessionKind parses a session kind case-insensitively.
func ParseSessionKind(s string) (SessionKind, error) {
	k := SessionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown session kind %q (use practice or tournament)", s)
	}
	return k, nil
}
