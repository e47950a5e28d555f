package scope

import "fmt"

// AttributeNotFoundError is returned by Get and Delete for attributes
// that are not visible. Delete only sees the innermost layer, so its
// error names the current level.
type AttributeNotFoundError struct {
	Name         string
	CurrentLevel bool
}

func (e *AttributeNotFoundError) Error() string {
	if e.CurrentLevel {
		return fmt.Sprintf("context has no attribute %q at the current level", e.Name)
	}
	return fmt.Sprintf("context has no attribute %q", e.Name)
}
