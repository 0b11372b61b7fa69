package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Skills maps a skill name to its total bonus
type Skills map[string]int

// SavingThrows maps an ability name to its saving throw bonus
type SavingThrows map[string]int

// Item is one line of a character's equipment list
type Item struct {
	Name     string `json:"name" binding:"required,max=64"`
	Quantity int    `json:"quantity" binding:"min=0,max=9999"`
}

// Equipment is the ordered equipment list of a character
type Equipment []Item

// StatusEffects are free-form conditions such as "poisoned"
type StatusEffects []string

func (s Skills) Value() (driver.Value, error)        { return encodeColumn(s, "{}") }
func (s SavingThrows) Value() (driver.Value, error)  { return encodeColumn(s, "{}") }
func (e Equipment) Value() (driver.Value, error)     { return encodeColumn(e, "[]") }
func (s StatusEffects) Value() (driver.Value, error) { return encodeColumn(s, "[]") }

func (s *Skills) Scan(src any) error {
	var v Skills
	if !decodeColumn(src, &v, "skills") || v == nil {
		v = Skills{}
	}
	*s = v
	return nil
}

func (s *SavingThrows) Scan(src any) error {
	var v SavingThrows
	if !decodeColumn(src, &v, "saving_throws") || v == nil {
		v = SavingThrows{}
	}
	*s = v
	return nil
}

func (e *Equipment) Scan(src any) error {
	var v Equipment
	if !decodeColumn(src, &v, "equipment") || v == nil {
		v = Equipment{}
	}
	*e = v
	return nil
}

func (s *StatusEffects) Scan(src any) error {
	var v StatusEffects
	if !decodeColumn(src, &v, "status_effects") || v == nil {
		v = StatusEffects{}
	}
	*s = v
	return nil
}

func encodeColumn(v any, empty string) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// decodeColumn reports false when the stored text is not valid JSON for dst.
// The row still loads with an empty default, but the corruption is logged.
func decodeColumn(src any, dst any, field string) bool {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return true
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		logrus.WithFields(logrus.Fields{
			"field": field,
			"type":  fmt.Sprintf("%T", src),
		}).Warn("Unexpected sheet column type, using empty default")
		return false
	}
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logrus.WithFields(logrus.Fields{
			"field": field,
			"error": err.Error(),
		}).Warn("Corrupt sheet column, using empty default")
		return false
	}
	return true
}
