package rest

import (
	"net/http"
	"strings"
)

// Shape is the declared response cardinality.
type Shape int

const (
	ShapeList Shape = iota
	ShapeSingle
	ShapeMaybeSingle
)

// CountMode selects the count metadata attached to a response.
type CountMode string

const (
	CountNone    CountMode = ""
	CountExact   CountMode = "exact"
	CountPlanned CountMode = "planned"
)

// Accept media types selecting object-shaped responses.
const (
	acceptObject         = "application/vnd.pgrst.object+json"
	acceptObjectNullable = "application/vnd.pgrst.object+json;nullable=true"
)

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Return     string // "minimal", "representation", "headers-only"
	Count      string // "exact", "planned", "estimated"
	Resolution string // "merge-duplicates" selects upsert on POST
}

// Headers holds all parsed HTTP headers relevant to mock operations.
type Headers struct {
	Prefer        *Prefer
	Shape         Shape
	AcceptProfile string
	WriteProfile  string
}

// parseHeaders parses all relevant headers from the HTTP request.
func parseHeaders(r *http.Request) *Headers {
	h := &Headers{
		Prefer:        parsePrefer(r),
		Shape:         parseShape(r),
		AcceptProfile: r.Header.Get("Accept-Profile"),
		WriteProfile:  r.Header.Get("Content-Profile"),
	}
	return h
}

// parseShape resolves the response shape from the Accept header. The nullable
// object media type maps to maybe-single: empty for zero rows rather than an
// error, still an error for more than one.
func parseShape(r *http.Request) Shape {
	accept := strings.ReplaceAll(strings.ToLower(r.Header.Get("Accept")), " ", "")
	switch {
	case strings.Contains(accept, acceptObjectNullable):
		return ShapeMaybeSingle
	case strings.Contains(accept, acceptObject):
		return ShapeSingle
	default:
		return ShapeList
	}
}

// parsePrefer parses the Prefer header according to RFC 7240.
// It returns nil if the header is not present.
func parsePrefer(r *http.Request) *Prefer {
	header := r.Header.Get("Prefer")
	if header == "" {
		return nil
	}

	p := &Prefer{}
	parseKeyValPairs(header, func(key, value string) {
		switch key {
		case "return":
			if isValidReturn(value) {
				p.Return = value
			}
		case "count":
			if isValidCount(value) {
				p.Count = value
			}
		case "resolution":
			p.Resolution = value
		}
	})

	return p
}

// parseKeyValPairs parses comma-separated preference directives.
// For each key=value pair found, it calls fn with the key and value.
func parseKeyValPairs(header string, fn func(key, value string)) {
	prefs := strings.Split(header, ",")
	for _, pref := range prefs {
		pref = strings.TrimSpace(pref)
		if key, value, found := strings.Cut(pref, "="); found {
			key = strings.TrimSpace(strings.ToLower(key))       // normalize case
			value = strings.Trim(strings.TrimSpace(value), `"`) // remove quotes
			fn(key, value)
		}
	}
}

// isValidReturn reports whether s is a valid return preference value.
func isValidReturn(s string) bool {
	switch strings.ToLower(s) {
	case "minimal", "representation", "headers-only":
		return true
	}
	return false
}

// isValidCount reports whether s is a valid count preference value.
func isValidCount(s string) bool {
	switch strings.ToLower(s) {
	case "exact", "planned", "estimated":
		return true
	}
	return false
}

// WantsUpsert reports whether the client asked for merge-duplicates
// resolution, turning an insert into an upsert.
func (p *Prefer) WantsUpsert() bool {
	return p != nil && strings.EqualFold(p.Resolution, "merge-duplicates")
}

// WantsMinimal reports whether the client prefers a body-less mutation response.
func (p *Prefer) WantsMinimal() bool {
	return p != nil && (strings.EqualFold(p.Return, "minimal") || strings.EqualFold(p.Return, "headers-only"))
}

// CountMode resolves the requested count mode. Estimated counts degrade to
// planned: the store always knows the exact number, there is no planner.
func (p *Prefer) CountMode() CountMode {
	if p == nil {
		return CountNone
	}
	switch strings.ToLower(p.Count) {
	case "exact":
		return CountExact
	case "planned", "estimated":
		return CountPlanned
	default:
		return CountNone
	}
}

// Applied renders the Preference-Applied echo for honored preferences.
func (p *Prefer) Applied() string {
	if p == nil {
		return ""
	}
	var applied []string
	if p.Return != "" {
		applied = append(applied, "return="+p.Return)
	}
	if mode := p.CountMode(); mode != CountNone {
		applied = append(applied, "count="+string(mode))
	}
	if p.WantsUpsert() {
		applied = append(applied, "resolution=merge-duplicates")
	}
	return strings.Join(applied, ", ")
}
