package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/ports"
	"ChatDigest/internal/textutil"
)

const (
	// DefaultPerSourceTemplate asks for a short neutral digest of one room.
	DefaultPerSourceTemplate = `다음은 텔레그램 방의 최근 대화야. 의견이나 편향 없이 핵심만 3~5줄로 요약해.
[방] {source}
[기간] {window}
[내용]
{content}`

	// DefaultCrossSourceTemplate asks for an analytical report across rooms.
	DefaultCrossSourceTemplate = `너는 시장 리서치 애널리스트야. 아래는 지난 {window} 동안 여러 텔레그램 방에서 수집한 대화이고, 각 줄은 "Source: 방이름 | Content: 내용" 형식이야.
여러 방에서 반복되는 주제를 묶어서 아래 소제목으로 분석 리포트를 작성해. 출처 방 이름을 근거로 함께 적어.
## 1. 핵심 테마
## 2. 주목할 종목·섹터
## 3. 시장 심리
## 4. 리스크 요인
[내용]
{content}`
)

// Templates holds the instructional prompt per aggregation mode. The
// placeholders {source}, {window} and {content} are interpolated.
type Templates struct {
	PerSource   string
	CrossSource string
}

// PromptCaps bounds the prompt submitted for each mode, in characters.
type PromptCaps struct {
	PerSource   int
	CrossSource int
}

// Summarizer turns a unit into a report with one generator call.
type Summarizer struct {
	generator ports.Generator
	templates Templates
	caps      PromptCaps
	window    time.Duration
	now       func() time.Time
}

// NewSummarizer falls back to the default templates when none are given.
func NewSummarizer(generator ports.Generator, templates Templates, caps PromptCaps, window time.Duration) *Summarizer {
	if strings.TrimSpace(templates.PerSource) == "" {
		templates.PerSource = DefaultPerSourceTemplate
	}
	if strings.TrimSpace(templates.CrossSource) == "" {
		templates.CrossSource = DefaultCrossSourceTemplate
	}
	return &Summarizer{
		generator: generator,
		templates: templates,
		caps:      caps,
		window:    window,
		now:       time.Now,
	}
}

// Summarize returns the report for unit. Failures come back as
// *domain.SummarizeError so the caller can move on to the next unit.
func (s *Summarizer) Summarize(ctx context.Context, unit domain.SummarizationUnit) (domain.Report, error) {
	if s.generator == nil {
		return domain.Report{}, &domain.SummarizeError{Provenance: unit.Provenance, Err: errors.New("summarization service is not configured")}
	}
	if unit.Empty() {
		return domain.Report{}, &domain.SummarizeError{Provenance: unit.Provenance, Err: errors.New("unit has no content")}
	}

	text, err := s.generator.Generate(ctx, s.BuildPrompt(unit))
	if err != nil {
		return domain.Report{}, &domain.SummarizeError{Provenance: unit.Provenance, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Report{}, &domain.SummarizeError{Provenance: unit.Provenance, Err: errors.New("empty response")}
	}

	return domain.Report{
		Provenance:  unit.Provenance,
		SourceID:    unit.SourceID,
		Mode:        unit.Mode,
		Text:        text,
		GeneratedAt: s.now(),
		Messages:    len(unit.Bodies),
	}, nil
}

// BuildPrompt interpolates the unit into its mode's template. The content is
// the last part of every template, so capping the prompt drops the oldest
// lines first.
func (s *Summarizer) BuildPrompt(unit domain.SummarizationUnit) string {
	template, limit := s.templates.PerSource, s.caps.PerSource
	if unit.Mode == domain.ModeCrossSource {
		template, limit = s.templates.CrossSource, s.caps.CrossSource
	}

	prompt := strings.NewReplacer(
		"{source}", unit.Provenance,
		"{window}", formatWindow(s.window),
		"{content}", unit.Content(),
	).Replace(template)

	if limit > 0 {
		prompt = textutil.Truncate(prompt, limit)
	}
	return prompt
}

func formatWindow(d time.Duration) string {
	if d <= 0 {
		d = domain.DefaultWindow
	}
	if d%time.Hour == 0 {
		return strconv.Itoa(int(d.Hours())) + "시간"
	}
	return d.String()
}
