// Package ranker turns raw classifier output into a sorted, human-readable report.
package ranker

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/menta2k/image-classifier/pkg/types"
)

// DefaultLocale is used by the package-level Rank function
var DefaultLocale = language.English

// Ranker sorts categories by score and formats them as percentage lines
type Ranker struct {
	printer *message.Printer
}

// Option configures a Ranker
type Option func(*Ranker)

// WithLocale selects the locale used to format percentages
func WithLocale(tag language.Tag) Option {
	return func(r *Ranker) {
		r.printer = message.NewPrinter(tag)
	}
}

// New creates a Ranker. Without options percentages are formatted for DefaultLocale.
func New(opts ...Option) *Ranker {
	r := &Ranker{printer: message.NewPrinter(DefaultLocale)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRanker = New()

// Rank formats categories with the default locale. See Ranker.Rank.
func Rank(categories []types.Category) string {
	return defaultRanker.Rank(categories)
}

// Sort returns a copy of categories ordered by descending score.
// Categories with equal scores keep their input order.
func Sort(categories []types.Category) []types.Category {
	sorted := slices.Clone(categories)
	slices.SortStableFunc(sorted, func(a, b types.Category) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return sorted
}

// Rank sorts categories by descending score and renders one
// "<label> <percentage>" line per category, joined by newlines.
// An empty input yields an empty report.
func (r *Ranker) Rank(categories []types.Category) string {
	return strings.Join(r.Lines(categories), "\n")
}

// Lines returns the formatted report lines in ranked order
func (r *Ranker) Lines(categories []types.Category) []string {
	if len(categories) == 0 {
		return nil
	}
	sorted := Sort(categories)
	lines := make([]string, 0, len(sorted))
	for _, c := range sorted {
		lines = append(lines, c.Label+" "+r.FormatPercent(c.Score))
	}
	return lines
}

// FormatPercent renders a score in [0,1] as a whole-number percentage
func (r *Ranker) FormatPercent(score float64) string {
	return strings.TrimSpace(r.printer.Sprint(number.Percent(score)))
}
