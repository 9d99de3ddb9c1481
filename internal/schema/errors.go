package schema

import (
	"errors"
	"strings"

	"fmcg-dashboard/internal/models"
)

// ErrMissingColumns matches any MissingColumnsError via errors.Is.
var ErrMissingColumns = errors.New("missing required columns")

// MissingColumnsError is returned when required canonical fields could not
// be resolved. Callers must stop the computation for the affected view.
type MissingColumnsError struct {
	Missing []models.Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return ErrMissingColumns.Error() + ": " + strings.Join(names, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Require fails with a MissingColumnsError naming every field of fields that
// s does not resolve.
func Require(s models.Schema, fields ...models.Field) error {
	if missing := s.Missing(fields...); len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	return nil
}
