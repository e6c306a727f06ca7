package msgsync

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPatchReplacesStatusInPlace(t *testing.T) {
	t.Parallel()
	in := Embed{
		Title:  "Job Update: Acme",
		Fields: []Field{{Name: "A", Value: "1"}, {Name: StatusField, Value: "applied"}, {Name: "B", Value: "2", Inline: true}},
	}
	got := Patch(in, StatusUpdate{Status: strp("interview")})
	want := []Field{{Name: "A", Value: "1"}, {Name: StatusField, Value: "interview"}, {Name: "B", Value: "2", Inline: true}}
	if !reflect.DeepEqual(got.Fields, want) {
		t.Fatalf("fields = %+v", got.Fields)
	}
	if in.Fields[1].Value != "applied" {
		t.Fatal("input embed was mutated")
	}
}

func TestPatchAppendsMissingFields(t *testing.T) {
	t.Parallel()
	in := Embed{Title: "Job Update: Acme", Fields: []Field{{Name: "Company", Value: "Acme"}}}
	got := Patch(in, StatusUpdate{Status: strp("offer"), Date: strp("2025-03-01")})
	want := []Field{
		{Name: "Company", Value: "Acme"},
		{Name: StatusField, Value: "offer", Inline: true},
		{Name: DateField, Value: "Mar 1, 2025", Inline: true},
	}
	if !reflect.DeepEqual(got.Fields, want) {
		t.Fatalf("fields = %+v", got.Fields)
	}
}

func TestPatchDefaults(t *testing.T) {
	t.Parallel()
	got := Patch(Embed{}, StatusUpdate{})
	if got.Title != DefaultTitle || got.Color == nil || *got.Color != DefaultColor {
		t.Fatalf("title=%q color=%v", got.Title, got.Color)
	}
	if got.Footer == nil || got.Footer.Text != DefaultFooter {
		t.Fatalf("footer = %+v", got.Footer)
	}
	if got.Description != "" || len(got.Fields) != 0 {
		t.Fatalf("fabricated content: %+v", got)
	}
}

func TestPatchKeepsExistingOrUnknown(t *testing.T) {
	t.Parallel()
	in := Embed{Fields: []Field{{Name: StatusField, Value: ""}, {Name: DateField, Value: "Feb 2, 2025", Inline: true}}}
	got := Patch(in, StatusUpdate{Status: strp("   ")})
	want := []Field{{Name: StatusField, Value: "Unknown"}, {Name: DateField, Value: "Feb 2, 2025", Inline: true}}
	if !reflect.DeepEqual(got.Fields, want) {
		t.Fatalf("fields = %+v", got.Fields)
	}
}

func TestPatchPreservesOtherParts(t *testing.T) {
	t.Parallel()
	in := Embed{
		Title:       "Job Update: Globex",
		Description: "Backend engineer",
		Color:       intp(0xFF0000),
		Footer:      &Footer{Text: "tracked", IconURL: "https://x/icon.png"},
		Extra:       json.RawMessage(`{"url":"https://jobs.example/1"}`),
		Fields:      []Field{{Name: StatusField, Value: "applied"}},
	}
	got := Patch(in, StatusUpdate{Status: strp("rejected")})
	if got.Title != in.Title || got.Description != in.Description || *got.Color != 0xFF0000 {
		t.Fatalf("header changed: %+v", got)
	}
	if *got.Footer != *in.Footer || string(got.Extra) != string(in.Extra) {
		t.Fatalf("footer/extra changed: %+v %s", got.Footer, got.Extra)
	}
	if got.Footer == in.Footer || got.Color == in.Color {
		t.Fatal("output shares pointers with input")
	}
}

func TestPatchIsIdempotent(t *testing.T) {
	t.Parallel()
	embeds := []Embed{
		{},
		{Title: "Job Update: A", Fields: []Field{{Name: "X", Value: "1"}}},
		{Title: "Job Update: B", Fields: []Field{{Name: StatusField, Value: "applied"}, {Name: StatusField, Value: ""}, {Name: "Y", Value: "2"}}},
		{Color: intp(1), Footer: &Footer{Text: "f"}, Fields: []Field{{Name: DateField, Value: "2025-01-01"}}},
	}
	updates := []StatusUpdate{
		{},
		{Status: strp("interview")},
		{Date: strp("2025-04-05T10:00:00Z")},
		{Status: strp("offer"), Date: strp("next tuesday")},
	}
	for i, e := range embeds {
		for j, u := range updates {
			once := Patch(e, u)
			twice := Patch(once, u)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("embed %d update %d: not idempotent\nonce:  %+v\ntwice: %+v", i, j, once, twice)
			}
		}
	}
}

func TestPatchPreservesUnreservedFieldPositions(t *testing.T) {
	t.Parallel()
	in := Embed{Fields: []Field{
		{Name: "A", Value: "1"}, {Name: DateField, Value: "old"}, {Name: "B", Value: "2", Inline: true}, {Name: StatusField, Value: "s"}, {Name: "C", Value: "3"},
	}}
	got := Patch(in, StatusUpdate{Status: strp("n"), Date: strp("2025-01-01")})
	if len(got.Fields) != len(in.Fields) {
		t.Fatalf("field count %d", len(got.Fields))
	}
	for i, f := range in.Fields {
		if f.Name == StatusField || f.Name == DateField {
			continue
		}
		if got.Fields[i] != f {
			t.Fatalf("field %d changed: %+v", i, got.Fields[i])
		}
	}
}

func TestRenderDate(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"2025-03-01":                "Mar 1, 2025",
		"2025-12-31T23:30:00-02:00": "Dec 31, 2025",
		"2024-01-02T10:00:00+14:00": "Jan 2, 2024",
		"2024-01-02T00:30:00Z":      "Jan 2, 2024",
		"  soon  ":                  "soon",
		"Mar 1, 2025":               "Mar 1, 2025",
	}
	for in, want := range tests {
		if got := RenderDate(in); got != want {
			t.Fatalf("RenderDate(%q) = %q, want %q", in, got, want)
		}
	}
}
