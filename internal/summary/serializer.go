// Package summary renders an incident into shareable chat-formatted text.
package summary

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Supported formats.
const (
	FormatCompact = "compact"
	FormatFull    = "full"
)

// DefaultSize is the number of updates included when the caller has no preference.
const DefaultSize = 5

// Formats lists the supported formats.
func Formats() []string {
	return []string{FormatCompact, FormatFull}
}

// IsValidFormat reports whether format has a template.
func IsValidFormat(format string) bool {
	return format == FormatCompact || format == FormatFull
}

// Serializer renders incidents from embedded templates.
type Serializer struct {
	templates map[string]*template.Template
	location  *time.Location
}

type templateData struct {
	Incident *domain.Incident
	Updates  []*domain.Update
	Omitted  int
}

// NewSerializer loads all templates. Timestamps are rendered in loc
// (UTC when loc is nil).
func NewSerializer(loc *time.Location) (*Serializer, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Serializer{
		templates: make(map[string]*template.Template),
		location:  loc,
	}

	upperCaser := cases.Upper(language.English)
	titleCaser := cases.Title(language.English)
	funcMap := template.FuncMap{
		"upper":       upperCaser.String,
		"title":       titleCaser.String,
		"formatTime":  s.formatTime,
		"formatClock": s.formatClock,
	}

	for _, format := range Formats() {
		filename := fmt.Sprintf("templates/%s.tmpl", format)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(format).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", format, err)
		}

		s.templates[format] = tmpl
	}

	return s, nil
}

// Serialize renders the incident. size caps the number of updates listed,
// newest first; size <= 0 lists every update. Unknown formats render compact.
func (s *Serializer) Serialize(incident *domain.Incident, size int, format string) string {
	if incident == nil {
		return ""
	}

	tmpl, ok := s.templates[format]
	if !ok {
		tmpl = s.templates[FormatCompact]
	}

	updates := incident.Updates
	omitted := 0
	if size > 0 && len(updates) > size {
		omitted = len(updates) - size
		updates = updates[:size]
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{
		Incident: incident,
		Updates:  updates,
		Omitted:  omitted,
	}); err != nil {
		slog.Error("failed to render summary", "format", format, "incident_id", incident.ID, "error", err)
		return ""
	}

	return strings.TrimSpace(buf.String())
}

func (s *Serializer) formatTime(t time.Time) string {
	return t.In(s.location).Format("Jan 2, 2006 3:04 PM MST")
}

func (s *Serializer) formatClock(t time.Time) string {
	return t.In(s.location).Format("3:04 PM")
}
