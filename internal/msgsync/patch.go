package msgsync

import (
	"slices"
	"strings"
	"time"
)

const (
	DefaultTitle  = "Job Update"
	DefaultColor  = 0x3498DB
	DefaultFooter = "Job Pulse"

	unknownValue = "Unknown"
)

// StatusUpdate is the partial change applied by Patch. Nil or blank values
// are not provided.
type StatusUpdate struct {
	Status *string
	Date   *string
}

// Patch returns a copy of cur with its Status and Date fields synced to u.
// Every other part of the embed is kept, fields in their original position.
// Patch is pure and idempotent: Patch(Patch(e, u), u) equals Patch(e, u).
func Patch(cur Embed, u StatusUpdate) Embed {
	status, hasStatus := provided(u.Status)
	date, hasDate := provided(u.Date)
	if hasDate {
		date = RenderDate(date)
	}

	out := Embed{
		Title:       cur.Title,
		Description: cur.Description,
		Extra:       slices.Clone(cur.Extra),
	}
	if out.Title == "" {
		out.Title = DefaultTitle
	}
	color := DefaultColor
	if cur.Color != nil {
		color = *cur.Color
	}
	out.Color = &color

	sawStatus, sawDate := false, false
	out.Fields = make([]Field, 0, len(cur.Fields)+2)
	for _, f := range cur.Fields {
		switch f.Name {
		case StatusField:
			sawStatus = true
			f.Value = pick(status, hasStatus, f.Value)
		case DateField:
			sawDate = true
			f.Value = pick(date, hasDate, f.Value)
		}
		out.Fields = append(out.Fields, f)
	}
	if !sawStatus && hasStatus {
		out.Fields = append(out.Fields, Field{Name: StatusField, Value: status, Inline: true})
	}
	if !sawDate && hasDate {
		out.Fields = append(out.Fields, Field{Name: DateField, Value: date, Inline: true})
	}

	if cur.Footer != nil {
		ft := *cur.Footer
		out.Footer = &ft
	} else {
		out.Footer = &Footer{Text: DefaultFooter}
	}
	return out
}

func provided(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	s := strings.TrimSpace(*p)
	return s, s != ""
}

func pick(next string, ok bool, existing string) string {
	switch {
	case ok:
		return next
	case existing != "":
		return existing
	}
	return unknownValue
}

// RenderDate formats RFC3339 and YYYY-MM-DD inputs as "Jan 2, 2006", keeping
// the calendar day of the offset the input carries. Anything else is returned
// trimmed but otherwise untouched, so rendering an already rendered date is a
// no-op.
func RenderDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}
