package msgsync

import "strings"

const (
	// UpdateTitlePrefix marks an embed posted by the backend for a job.
	UpdateTitlePrefix = "Job Update:"

	StatusField = "Status"
	DateField   = "Date"
)

// IsDomainUpdate reports whether m carries a job update card: an embed whose
// title starts with UpdateTitlePrefix and that has a Status field. Matching is
// case-sensitive.
func IsDomainUpdate(m Message) bool {
	for _, e := range m.Embeds {
		if strings.HasPrefix(e.Title, UpdateTitlePrefix) && hasField(e.Fields, StatusField) {
			return true
		}
	}
	return false
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// cardIndex returns the index of the first embed titled as a job update, or 0
// when none is.
func cardIndex(embeds []Embed) int {
	for i, e := range embeds {
		if strings.HasPrefix(e.Title, UpdateTitlePrefix) {
			return i
		}
	}
	return 0
}
