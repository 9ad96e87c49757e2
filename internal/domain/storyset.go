package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// StorySet is an ordered set of story IDs stored as a JSON array in a text
// column. Decoding never fails: unreadable data yields an empty set and a
// warning in the log.
type StorySet []string

// GormDataType tells GORM the column type for StorySet.
func (StorySet) GormDataType() string { return "text" }

// Value implements driver.Valuer. A nil set is stored as "[]".
func (s StorySet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StorySet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StorySet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", src)).Msg("story set: unsupported column type, using empty set")
		*s = StorySet{}
		return nil
	}
	*s = DecodeStorySet(raw)
	return nil
}

// DecodeStorySet parses a JSON array of story IDs. Numeric elements are
// converted to their decimal form, duplicates and other element types are
// dropped. Anything that is not a JSON array decodes to the empty set.
func DecodeStorySet(raw []byte) StorySet {
	out := StorySet{}
	if len(raw) == 0 {
		return out
	}
	var elems []any
	if err := json.Unmarshal(raw, &elems); err != nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("story set: malformed data, using empty set")
		return out
	}
	seen := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		var id string
		switch v := e.(type) {
		case string:
			id = v
		case float64:
			id = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			continue
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Contains reports whether id is in the set.
func (s StorySet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// With returns the set with id appended and whether it was added.
func (s StorySet) With(id string) (StorySet, bool) {
	if s.Contains(id) {
		return s, false
	}
	out := make(StorySet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, id), true
}

// Without returns the set with id removed and whether it was present.
func (s StorySet) Without(id string) (StorySet, bool) {
	out := make(StorySet, 0, len(s))
	removed := false
	for _, v := range s {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if !removed {
		return s, false
	}
	return out, true
}

