// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// Config holds the defaults used when starting a new session.
type Config struct {
	Owner         string
	ArcherName    string
	ArcherSurname string
	BowType       BowType
	Distance      float64
	TotalEnds     int
	ArrowsPerEnd  int
	Kind          SessionKind
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Owner     string
	Kind      SessionKind
	Distances []float64
	Since     *time.Time
	Last      int
	Completed bool
}

// End is one group of arrow slots shot before scoring.
type End []ArrowScore

// Session is one scoring round and its score matrix.
type Session struct {
	ID            string
	OwnerID       string
	ArcherName    string
	ArcherSurname string
	BowType       BowType
	Distance      float64
	TotalEnds     int
	ArrowsPerEnd  int
	Kind          SessionKind
	Ends          []End
	XCount        int
	Completed     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Synced        bool
}

// Position addresses one arrow slot.
type Position struct {
	End   int
	Arrow int
}

// NewEnds allocates an unset score matrix.
func NewEnds(totalEnds, arrowsPerEnd int) []End {
	ends := make([]End, totalEnds)
	for i := range ends {
		ends[i] = make(End, arrowsPerEnd)
	}
	return ends
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	if s.Ends != nil {
		out.Ends = make([]End, len(s.Ends))
		for i, end := range s.Ends {
			out.Ends[i] = append(End(nil), end...)
		}
	}
	return out
}

// CountX rescans the score matrix for X arrows.
func (s Session) CountX() int {
	count := 0
	for _, end := range s.Ends {
		for _, a := range end {
			if a.IsCenter() {
				count++
			}
		}
	}
	return count
}

// IncompleteEnds returns the indexes of ends that still have unset slots.
func (s Session) IncompleteEnds() []int {
	var out []int
	for i, end := range s.Ends {
		for _, a := range end {
			if !a.IsSet() {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// InBounds reports whether p addresses a slot inside the session's fixed dimensions.
func (s Session) InBounds(p Position) bool {
	return p.End >= 0 && p.End < s.TotalEnds && p.Arrow >= 0 && p.Arrow < s.ArrowsPerEnd
}

// ArcherLabel returns "Name Surname" trimmed of missing parts.
func (s Session) ArcherLabel() string {
	switch {
	case s.ArcherName == "":
		return s.ArcherSurname
	case s.ArcherSurname == "":
		return s.ArcherName
	default:
		return s.ArcherName + " " + s.ArcherSurname
	}
}

type sessionJSON struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"ownerId"`
	ArcherName    string      `json:"archerName"`
	ArcherSurname string      `json:"archerSurname"`
	BowType       BowType     `json:"bowType"`
	Distance      float64     `json:"distance"`
	TotalEnds     int         `json:"totalEnds"`
	ArrowsPerEnd  int         `json:"arrowsPerEnd"`
	Kind          SessionKind `json:"sessionKind"`
	Ends          []End       `json:"ends"`
	XCount        int         `json:"xCount"`
	Completed     bool        `json:"completed"`
	CreatedAt     int64       `json:"createdAt"`
	UpdatedAt     int64       `json:"updatedAt"`
	Synced        bool        `json:"synced"`
}

// MarshalJSON encodes the session record with epoch-millisecond timestamps.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		ArcherName:    s.ArcherName,
		ArcherSurname: s.ArcherSurname,
		BowType:       s.BowType,
		Distance:      s.Distance,
		TotalEnds:     s.TotalEnds,
		ArrowsPerEnd:  s.ArrowsPerEnd,
		Kind:          s.Kind,
		Ends:          s.Ends,
		XCount:        s.XCount,
		Completed:     s.Completed,
		CreatedAt:     UnixMilli(s.CreatedAt),
		UpdatedAt:     UnixMilli(s.UpdatedAt),
		Synced:        s.Synced,
	})
}

// UnmarshalJSON decodes the record produced by MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session{
		ID:            raw.ID,
		OwnerID:       raw.OwnerID,
		ArcherName:    raw.ArcherName,
		ArcherSurname: raw.ArcherSurname,
		BowType:       raw.BowType,
		Distance:      raw.Distance,
		TotalEnds:     raw.TotalEnds,
		ArrowsPerEnd:  raw.ArrowsPerEnd,
		Kind:          raw.Kind,
		Ends:          raw.Ends,
		XCount:        raw.XCount,
		Completed:     raw.Completed,
		CreatedAt:     FromUnixMilli(raw.CreatedAt),
		UpdatedAt:     FromUnixMilli(raw.UpdatedAt),
		Synced:        raw.Synced,
	}
	return nil
}

// SightSetting records a sight mark for a bow at a distance.
type SightSetting struct {
	ID            string
	OwnerID       string
	BowIdentifier string
	Distance      float64
	SightMark     string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type sightJSON struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"ownerId"`
	BowIdentifier string  `json:"bowIdentifier"`
	Distance      float64 `json:"distance"`
	SightMark     string  `json:"sightMark"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     int64   `json:"createdAt"`
	UpdatedAt     int64   `json:"updatedAt"`
}

// MarshalJSON encodes the sight setting with epoch-millisecond timestamps.
func (s SightSetting) MarshalJSON() ([]byte, error) {
	return json.Marshal(sightJSON{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		BowIdentifier: s.BowIdentifier,
		Distance:      s.Distance,
		SightMark:     s.SightMark,
		Notes:         s.Notes,
		CreatedAt:     UnixMilli(s.CreatedAt),
		UpdatedAt:     UnixMilli(s.UpdatedAt),
	})
}

// UnmarshalJSON decodes the record produced by MarshalJSON.
func (s *SightSetting) UnmarshalJSON(data []byte) error {
	var raw sightJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SightSetting{
		ID:            raw.ID,
		OwnerID:       raw.OwnerID,
		BowIdentifier: raw.BowIdentifier,
		Distance:      raw.Distance,
		SightMark:     raw.SightMark,
		Notes:         raw.Notes,
		CreatedAt:     FromUnixMilli(raw.CreatedAt),
		UpdatedAt:     FromUnixMilli(raw.UpdatedAt),
	}
	return nil
}

// UnixMilli converts t to epoch milliseconds; the zero time maps to 0.
func UnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMilli is the inverse of UnixMilli.
func FromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
