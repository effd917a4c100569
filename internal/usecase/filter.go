package usecase

import (
	"slices"
	"strings"
	"unicode/utf8"

	"ChatDigest/internal/domain"
)

// Admit is the base predicate: a non-blank body of at least minLength characters.
func Admit(message domain.Message, minLength int) bool {
	if strings.TrimSpace(message.Body) == "" {
		return false
	}
	return utf8.RuneCountInString(message.Body) >= minLength
}

// ContentFilter classifies messages as admissible or noise.
type ContentFilter struct {
	MinLength int
	// Keywords and AllowedSources are optional. When either is set a message
	// must also contain a keyword or come from an allowed source.
	Keywords       []string
	AllowedSources []string
}

// Admit applies the length predicate and the optional keyword allowlist.
func (f ContentFilter) Admit(message domain.Message) bool {
	if !Admit(message, f.MinLength) {
		return false
	}
	if len(f.Keywords) == 0 && len(f.AllowedSources) == 0 {
		return true
	}
	if slices.Contains(f.AllowedSources, message.SourceName) {
		return true
	}
	for _, kw := range f.Keywords {
		if kw != "" && strings.Contains(message.Body, kw) {
			return true
		}
	}
	return false
}

// Apply keeps admitted messages in their original order.
func (f ContentFilter) Apply(messages []domain.Message) []domain.Message {
	var admitted []domain.Message
	for _, msg := range messages {
		if f.Admit(msg) {
			admitted = append(admitted, msg)
		}
	}
	return admitted
}
