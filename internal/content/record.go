// Package content reads the venue archive from Markdown files carrying YAML
// front matter.
package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"club_archive/core-go/internal/geo"
)

var ErrNotFound = errors.New("document not found")

// Repository yields raw venue records. Records lacking identity fields are
// still returned; defaulting is the consumer's job.
type Repository interface {
	ListRecords(ctx context.Context) ([]Record, error)
}

// Record is one venue document as authored. Zero values mean "absent".
type Record struct {
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	Location     *geo.LatLng `json:"location,omitempty"`
	Address      string      `json:"address,omitempty"`
	Neighborhood string      `json:"neighborhood,omitempty"`
	Status       string      `json:"status,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	Decades      []string    `json:"decades,omitempty"`
	StartYear    int         `json:"start_year,omitempty"`
	EndYear      *int        `json:"end_year,omitempty"`
	Description  string      `json:"description,omitempty"`
	Contributor  string      `json:"contributor,omitempty"`
	Date         time.Time   `json:"date"`
	Draft        bool        `json:"draft,omitempty"`

	body []byte
}

// recordFromFrontMatter picks the declared fields out of a decoded front
// matter map. Fields with an unexpected type are treated as absent.
func recordFromFrontMatter(slug string, fm map[string]any) Record {
	r := Record{
		Slug:         slug,
		Title:        stringField(fm, "title"),
		Address:      stringField(fm, "address"),
		Neighborhood: stringField(fm, "neighborhood"),
		Status:       stringField(fm, "status"),
		Tags:         stringList(fm, "tags"),
		Decades:      stringList(fm, "decades"),
		Description:  stringField(fm, "description"),
		Contributor:  stringField(fm, "contributor"),
		Draft:        boolField(fm, "draft"),
	}
	if v, ok := intField(fm, "start_year"); ok {
		r.StartYear = v
	}
	if v, ok := intField(fm, "end_year"); ok {
		r.EndYear = &v
	}
	if loc, ok := fm["location"].(map[string]any); ok {
		lat, latOK := floatField(loc, "lat")
		lng, lngOK := floatField(loc, "lng")
		if latOK && lngOK {
			r.Location = &geo.LatLng{Lat: lat, Lng: lng}
		}
	}
	r.Date = dateField(fm, "date")
	return r
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int, float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func stringList(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case int, float64:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		return i, err == nil
	default:
		return 0, false
	}
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"}

func dateField(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
