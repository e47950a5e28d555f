package types

import (
	"fmt"
	"strings"
)

// Location identifies a position in a feature file.
type Location struct {
	File string `yaml:"file"`
	Line int    `yaml:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Tag is a feature or scenario tag. Tags are stored without the leading
// "@" marker.
type Tag string

// NormalizeTag strips the optional "@" prefix and surrounding space.
func NormalizeTag(raw string) Tag {
	return Tag(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}

// NormalizeTags converts a list of raw tag strings.
func NormalizeTags(raw []string) []Tag {
	tags := make([]Tag, 0, len(raw))
	for _, r := range raw {
		if t := NormalizeTag(r); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
