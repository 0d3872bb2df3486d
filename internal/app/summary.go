package app

import "alpharia-assessment/internal/domain"

// Summarize reduces section states into per-section and grand totals.
func Summarize(sections []*SectionState) domain.AttemptSummary {
	out := domain.AttemptSummary{Sections: make([]domain.SectionSummary, 0, len(sections))}
	for _, sec := range sections {
		s := sec.Summary()
		out.Sections = append(out.Sections, s)
		out.Correct += s.Correct
		out.Total += s.Total
	}
	out.Percentage = Percentage(out.Correct, out.Total)
	return out
}
