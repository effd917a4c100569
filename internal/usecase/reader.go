package usecase

import (
	"context"
	"iter"
	"sync/atomic"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
)

// SourceReader streams one source's messages inside a time window.
type SourceReader struct {
	platform ports.ChatPlatform
}

// NewSourceReader wraps the platform client.
func NewSourceReader(platform ports.ChatPlatform) *SourceReader {
	return &SourceReader{platform: platform}
}

// Read yields messages newest-first and stops at the first of: maxMessages
// yielded, a message older than window.Start, or the end of history. Any
// platform failure is yielded once as a *domain.SourceUnreadableError and ends
// the sequence. The sequence can be ranged over only once.
func (r *SourceReader) Read(ctx context.Context, source domain.Source, window domain.TimeWindow, maxMessages int) iter.Seq2[domain.Message, error] {
	var consumed atomic.Bool

	return func(yield func(domain.Message, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		if !source.Readable {
			yield(domain.Message{}, &domain.SourceUnreadableError{Source: source.Name, Err: domain.ErrPermissionDenied})
			return
		}
		if maxMessages <= 0 {
			return
		}

		yielded := 0
		for msg, err := range r.platform.StreamMessages(domain.WithWindow(ctx, window), source, maxMessages) {
			if err != nil {
				yield(domain.Message{}, &domain.SourceUnreadableError{Source: source.Name, Err: err})
				return
			}
			if window.Before(msg.Timestamp) {
				return
			}
			// Posted after the run started; the next run picks it up.
			if window.After(msg.Timestamp) {
				continue
			}
			if msg.SourceID == "" {
				msg.SourceID = source.ID
			}
			if msg.SourceName == "" {
				msg.SourceName = source.Name
			}
			if !yield(msg, nil) {
				return
			}
			yielded++
			if yielded >= maxMessages {
				return
			}
		}
	}
}

// Drain consumes a read sequence. Messages seen before a failure are
// discarded so an unreadable source contributes nothing to the run.
func Drain(seq iter.Seq2[domain.Message, error]) ([]domain.Message, error) {
	var out []domain.Message
	for msg, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
