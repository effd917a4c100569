package usecase

import (
	"strings"
	"testing"

	"ChatDigest/internal/domain"
)

func TestAdmit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		min  int
		want bool
	}{
		{name: "empty", body: "", min: 0, want: false},
		{name: "whitespace", body: "   \n", min: 0, want: false},
		{name: "below minimum", body: strings.Repeat("a", 19), min: 20, want: false},
		{name: "at minimum", body: strings.Repeat("a", 20), min: 20, want: true},
		{name: "hangul counted by character", body: strings.Repeat("가", 10), min: 10, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Admit(domain.Message{Body: tt.body}, tt.min); got != tt.want {
				t.Fatalf("Admit(%q, %d) = %v, want %v", tt.body, tt.min, got, tt.want)
			}
		})
	}
}

func TestContentFilterApplyKeepsOrder(t *testing.T) {
	t.Parallel()

	msgs := []domain.Message{
		{Body: strings.Repeat("a", 5)},
		{Body: strings.Repeat("b", 25)},
		{Body: strings.Repeat("c", 40)},
	}

	admitted := ContentFilter{MinLength: 20}.Apply(msgs)
	if len(admitted) != 2 {
		t.Fatalf("expected 2 admitted, got %d", len(admitted))
	}
	if admitted[0].Body != msgs[1].Body || admitted[1].Body != msgs[2].Body {
		t.Fatalf("unexpected admitted order: %v", admitted)
	}
}

func TestContentFilterAllowlist(t *testing.T) {
	t.Parallel()

	f := ContentFilter{
		MinLength:      5,
		Keywords:       []string{"사설", "칼럼"},
		AllowedSources: []string{"매일경제"},
	}

	tests := []struct {
		name string
		msg  domain.Message
		want bool
	}{
		{name: "keyword in body", msg: domain.Message{SourceName: "지역신문", Body: "[사설] 금리 동결의 의미"}, want: true},
		{name: "allowed source", msg: domain.Message{SourceName: "매일경제", Body: "반도체 수출 회복세"}, want: true},
		{name: "neither", msg: domain.Message{SourceName: "지역신문", Body: "오늘의 날씨 안내"}, want: false},
		{name: "allowed but too short", msg: domain.Message{SourceName: "매일경제", Body: "짧음"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Admit(tt.msg); got != tt.want {
				t.Fatalf("Admit = %v, want %v", got, tt.want)
			}
		})
	}
}
