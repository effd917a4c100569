package usecase

import (
	"fmt"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/textutil"
)

// SourceBatch carries the admitted messages of one source, newest-first.
type SourceBatch struct {
	Source   domain.Source
	Messages []domain.Message
}

// Aggregator buffers admitted text into summarization units.
type Aggregator struct {
	mode     domain.AggregationMode
	capChars int
}

// NewAggregator builds an aggregator for the given mode and per-unit cap.
func NewAggregator(mode domain.AggregationMode, capChars int) *Aggregator {
	return &Aggregator{mode: mode, capChars: capChars}
}

// Aggregate builds one unit per source (per-source mode) or a single "ALL"
// unit (cross-source mode). Batches are consumed in the given order and each
// batch is newest-first, so once a unit reaches the cap the remaining, older
// content is dropped. Sources without admitted messages produce no unit.
func (a *Aggregator) Aggregate(batches []SourceBatch) []domain.SummarizationUnit {
	switch a.mode {
	case domain.ModeCrossSource:
		b := newUnitBuilder(domain.SummarizationUnit{
			Provenance: domain.AllSources,
			Mode:       domain.ModeCrossSource,
		}, a.capChars)
	outer:
		for _, batch := range batches {
			for _, msg := range batch.Messages {
				line := fmt.Sprintf("Source: %s | Content: %s\n", batch.Source.Name, msg.Body)
				if !b.add(msg.Body, line) {
					break outer
				}
			}
		}
		if b.unit.Empty() {
			return nil
		}
		return []domain.SummarizationUnit{b.unit}

	default:
		units := make([]domain.SummarizationUnit, 0, len(batches))
		for _, batch := range batches {
			b := newUnitBuilder(domain.SummarizationUnit{
				Provenance: batch.Source.Name,
				SourceID:   batch.Source.ID,
				Mode:       domain.ModePerSource,
			}, a.capChars)
			for _, msg := range batch.Messages {
				if !b.add(msg.Body, "- "+msg.Body+"\n") {
					break
				}
			}
			if !b.unit.Empty() {
				units = append(units, b.unit)
			}
		}
		return units
	}
}

type unitBuilder struct {
	unit     domain.SummarizationUnit
	capChars int
}

func newUnitBuilder(unit domain.SummarizationUnit, capChars int) *unitBuilder {
	return &unitBuilder{unit: unit, capChars: capChars}
}

// add appends a whole line while it fits. The first line of a unit is cut to
// the cap instead of being dropped so a single long message still yields a
// unit. It returns false once the unit is full.
func (b *unitBuilder) add(body, line string) bool {
	n := textutil.Len(line)
	if b.unit.Chars+n <= b.capChars {
		b.unit.Lines = append(b.unit.Lines, line)
		b.unit.Bodies = append(b.unit.Bodies, body)
		b.unit.Chars += n
		return true
	}

	if b.unit.Empty() && b.capChars > 0 {
		cut := textutil.Truncate(line, b.capChars)
		b.unit.Lines = append(b.unit.Lines, cut)
		b.unit.Bodies = append(b.unit.Bodies, body)
		b.unit.Chars = textutil.Len(cut)
	}
	b.unit.Truncated = true
	return false
}
