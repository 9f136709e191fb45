package idset

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// MarshalJSON encodes the Set as an ascending JSON array of ids.
func (s *Set) MarshalJSON() ([]byte, error) {
	if len(s.body.items) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s.body.items)
}

// UnmarshalJSON replaces the Set's contents with the ids of a JSON array.
// Order and duplication in the input are irrelevant; attachment state is
// unaffected.
func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []ID
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("idset: decoding id array: %w", err)
	}
	s.Clear()
	s.InsertAll(ids...)
	return nil
}
