package rest

import "strings"

// OrderParam is one ordering criterion, in priority order of appearance.
type OrderParam struct {
	Column        string
	Direction     string // asc or desc
	NullsPosition string // first or last
}

// Descending reports whether the criterion sorts high-to-low.
func (o OrderParam) Descending() bool { return o.Direction == "desc" }

// NullsFirst reports whether null values sort before non-null values.
func (o OrderParam) NullsFirst() bool { return o.NullsPosition == "first" }

// parseOrderParam parses "col.desc,other.asc.nullsfirst" style order clauses.
func parseOrderParam(order string) []OrderParam {
	parts := splitRespectingParens(order)
	result := make([]OrderParam, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Default direction is ascending
		direction := "asc"
		nullsPosition := ""

		// Check for nulls position suffix first: it follows the direction
		if strings.HasSuffix(part, ".nullsfirst") {
			part = strings.TrimSuffix(part, ".nullsfirst")
			nullsPosition = "first"
		} else if strings.HasSuffix(part, ".nullslast") {
			part = strings.TrimSuffix(part, ".nullslast")
			nullsPosition = "last"
		}

		if strings.HasSuffix(part, ".desc") {
			part = strings.TrimSuffix(part, ".desc")
			direction = "desc"
		} else if strings.HasSuffix(part, ".asc") {
			part = strings.TrimSuffix(part, ".asc")
			direction = "asc"
		}

		// PostgreSQL treats nulls as largest: last ascending, first descending
		if nullsPosition == "" {
			if direction == "desc" {
				nullsPosition = "first"
			} else {
				nullsPosition = "last"
			}
		}

		result = append(result, OrderParam{
			Column:        part,
			Direction:     direction,
			NullsPosition: nullsPosition,
		})
	}

	return result
}

// splitRespectingParens splits s by commas, ignoring commas nested inside
// parentheses, eg select=id,author(id,name).
func splitRespectingParens(s string) []string {
	var parts []string
	var current strings.Builder
	parenDepth := 0

	for _, char := range s {
		switch char {
		case '(':
			parenDepth++
			current.WriteRune(char)
		case ')':
			parenDepth--
			current.WriteRune(char)
		case ',':
			if parenDepth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(char)
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
