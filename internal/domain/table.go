package domain

import (
	"fmt"
	"regexp"
)

// DefaultTable identifies the combat tracker and battle map used when a request names none
const DefaultTable = "main"

var tablePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// TableName resolves the table a request names. Empty means DefaultTable.
func TableName(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !tablePattern.MatchString(name) {
		return "", fmt.Errorf("%w: table must be 1-32 letters, digits, '_' or '-'", ErrValidation)
	}
	return name, nil
}
