// Package view derives the display sequence consumed by the rendering layer.
package view

import (
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/justyntemme/duopane/internal/model"
)

// DefaultPadding is the number of placeholder rows appended so floating
// overlay controls never cover the last real row.
const DefaultPadding = 2

// Options controls a projection.
type Options struct {
	SearchTerm string
	ShowHidden bool
	Padding    int
}

// Row is one line of the projected view. Placeholder rows carry no entry.
type Row struct {
	Entry       model.Entry
	Placeholder bool
	Size        string // humanized size, "" for directories or unknown sizes
}

// Selectable reports whether the row can be selected or navigated.
func (r Row) Selectable() bool {
	return !r.Placeholder
}

// Project filters, sorts and pads entries. The input slice is not modified.
func Project(entries []model.Entry, opts Options) []Row {
	filter := ParseFilter(opts.SearchTerm, time.Now())

	visible := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !opts.ShowHidden && IsHidden(e.Name) {
			continue
		}
		if !filter.Match(e) {
			continue
		}
		visible = append(visible, e)
	}
	Sort(visible)

	padding := opts.Padding
	if padding < 0 {
		padding = 0
	}
	rows := make([]Row, 0, len(visible)+padding)
	for _, e := range visible {
		rows = append(rows, Row{Entry: e, Size: displaySize(e)})
	}
	for i := 0; i < padding; i++ {
		rows = append(rows, Row{Placeholder: true})
	}
	return rows
}

// Entries strips placeholders from projected rows.
func Entries(rows []Row) []model.Entry {
	out := make([]model.Entry, 0, len(rows))
	for _, r := range rows {
		if r.Placeholder {
			continue
		}
		out = append(out, r.Entry)
	}
	return out
}

// IsHidden reports dot-prefixed names.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Sort orders directories before files, then names by locale-aware collation.
// Ties fall back to raw name and key so the order is total.
func Sort(entries []model.Entry) {
	// A Collator keeps internal buffers and must not be shared across goroutines.
	c := collate.New(language.Und)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})
}

func displaySize(e model.Entry) string {
	if e.IsDir || e.Size < 0 {
		return ""
	}
	return humanize.IBytes(uint64(e.Size))
}
