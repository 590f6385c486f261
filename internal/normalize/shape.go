// Package normalize maps raw source rows onto the canonical professional record.
package normalize

import "strings"

// Shape identifies which header layout a license row uses.
type Shape int

const (
	// ShapeLicense rows carry name, type, disciplined and is_business columns.
	ShapeLicense Shape = iota
	// ShapeDirectory rows carry full_name, license_type, status, phone and email columns.
	ShapeDirectory
)

func (s Shape) String() string {
	switch s {
	case ShapeDirectory:
		return "directory"
	default:
		return "license"
	}
}

// DetectShape decides the row layout from a non-empty full_name column.
func DetectShape(row map[string]string) Shape {
	if strings.TrimSpace(row["full_name"]) != "" {
		return ShapeDirectory
	}
	return ShapeLicense
}
