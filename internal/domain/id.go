package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EntityID is an identifier clients may send either as a JSON string or a
// JSON number, such as a character id used as a token or combatant id
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = EntityID(n.String())
	return nil
}
