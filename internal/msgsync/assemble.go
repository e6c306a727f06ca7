package msgsync

import "slices"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Assemble sorts msgs newest first (ties keep fetch order) and cuts the
// requested page. Total and TotalPages always describe the whole set. msgs is
// not modified.
func Assemble(msgs []Message, page, limit int) RetrievalResult {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b Message) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	total := len(sorted)
	res := RetrievalResult{
		Page:       page,
		Total:      total,
		TotalPages: total / limit,
		Messages:   []Message{},
	}
	if total%limit != 0 {
		res.TotalPages++
	}

	// compared in pages so the offset below cannot overflow
	if page > res.TotalPages {
		return res
	}
	start := (page - 1) * limit
	end := min(start+limit, total)
	res.Messages = sorted[start:end]
	return res
}
