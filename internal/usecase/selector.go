package usecase

import (
	"slices"
	"strings"

	"ChatDigest/internal/domain"
)

// SourceSelector decides which enumerated sources are in scope for a run.
type SourceSelector struct {
	keywords []string
	sortByID bool
}

// NewSourceSelector drops blank keywords. sortByID replaces the platform
// enumeration order with a stable order by source identifier.
func NewSourceSelector(keywords []string, sortByID bool) *SourceSelector {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return &SourceSelector{keywords: cleaned, sortByID: sortByID}
}

// Select keeps every source whose display name contains at least one keyword
// (case-sensitive). An unreadable source whose title could not be fetched
// carries its identifier as name; it is kept so the failure is counted.
// No keywords selects nothing.
func (s *SourceSelector) Select(all []domain.Source) []domain.Source {
	if len(s.keywords) == 0 {
		return nil
	}

	var selected []domain.Source
	for _, src := range all {
		if s.matches(src.Name) || (!src.Readable && src.Name == src.ID) {
			selected = append(selected, src)
		}
	}

	if s.sortByID {
		slices.SortStableFunc(selected, func(a, b domain.Source) int {
			return strings.Compare(a.ID, b.ID)
		})
	}
	return selected
}

func (s *SourceSelector) matches(name string) bool {
	for _, kw := range s.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
