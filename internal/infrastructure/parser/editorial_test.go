package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/scanner"
	"ChatDigest/internal/usecase"
)

const editorialList = `
<ul class="list_body newsflash_body">
  <li>
    <dl>
      <dt class="photo"><a href="/article/1"><img src="x.jpg"></a></dt>
      <dt><a href="/article/1">[사설] 금리 동결의 의미</a></dt>
      <dd><span class="writing">매일경제</span><span class="date">2시간 전</span></dd>
    </dl>
  </li>
  <li>
    <dl>
      <dt><a href="/article/2">[칼럼] 반도체 수출 회복</a></dt>
      <dd><span class="writing">한국경제</span><span class="date">2025.03.01. 18:30</span></dd>
    </dl>
  </li>
  <li>
    <dl>
      <dt><a href="/article/3">[사설] 본문 없는 기사</a></dt>
      <dd><span class="writing">매일경제</span><span class="date">5분 전</span></dd>
    </dl>
  </li>
</ul>`

func editorialServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list":
			_, _ = w.Write([]byte(editorialList))
		case "/article/1":
			_, _ = w.Write([]byte(`<article id="dic_area">한국은행이   기준금리를
			동결했다.</article>`))
		case "/article/2":
			_, _ = w.Write([]byte(`<div id="newsct_article">수출이 회복세다.</div>`))
		case "/article/3":
			_, _ = w.Write([]byte(`<div>광고</div>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestEditorialListSourcesOnePerPress(t *testing.T) {
	t.Parallel()

	server := editorialServer(t)
	defer server.Close()

	sc := NewEditorialScanner(server.Client(), nil)
	sources, err := sc.ListSources(context.Background(), scanner.Site{Name: "naver", BaseURL: server.URL + "/list"})
	if err != nil {
		t.Fatalf("ListSources error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 presses, got %d", len(sources))
	}
	if sources[0].Name != "매일경제" || sources[1].Name != "한국경제" {
		t.Fatalf("unexpected order %+v", sources)
	}
	if !sources[0].Readable {
		t.Fatalf("expected readable source")
	}
}

func TestEditorialStreamMessages(t *testing.T) {
	t.Parallel()

	server := editorialServer(t)
	defer server.Close()

	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	sc := NewEditorialScanner(server.Client(), nil)
	sc.now = func() time.Time { return now }

	src := domain.Source{ID: "매일경제", Name: "매일경제", Site: server.URL + "/list"}
	var msgs []domain.Message
	for msg, err := range sc.StreamMessages(context.Background(), src, 5) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) != 1 {
		t.Fatalf("expected the article without body to be skipped, got %d", len(msgs))
	}
	if msgs[0].Body != "[사설] 금리 동결의 의미\n한국은행이 기준금리를 동결했다." {
		t.Fatalf("unexpected body %q", msgs[0].Body)
	}
	if !msgs[0].Timestamp.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected timestamp %v", msgs[0].Timestamp)
	}
	if msgs[0].ID != server.URL+"/article/1" {
		t.Fatalf("unexpected id %q", msgs[0].ID)
	}
}

func TestParseListedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		text string
		want time.Time
		ok   bool
	}{
		{"방금 전", now, true},
		{"30분 전", now.Add(-30 * time.Minute), true},
		{"3시간전", now.Add(-3 * time.Hour), true},
		{"1일 전", now.AddDate(0, 0, -1), true},
		{"어제", now.AddDate(0, 0, -1), true},
		{"2025.03.01. 18:30", time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), true},
		{"2025.03.01.", time.Date(2025, 2, 28, 15, 0, 0, 0, time.UTC), true},
		{"시간 미상", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseListedAt(tt.text, now)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Fatalf("%q: got %v,%v want %v,%v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestListedAtNeverPassesCeiling(t *testing.T) {
	t.Parallel()

	ceiling := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	now := ceiling.Add(5 * time.Second)

	tests := []struct {
		text string
		want time.Time
	}{
		{"방금 전", ceiling},
		{"시간 미상", ceiling},
		{"", ceiling},
		{"10분 전", now.Add(-10 * time.Minute)},
	}
	for _, tt := range tests {
		if got := listedAt(tt.text, now, ceiling); !got.Equal(tt.want) {
			t.Fatalf("%q: got %v want %v", tt.text, got, tt.want)
		}
	}
}

func TestEditorialLooselyDatedArticlesSurviveTheWindow(t *testing.T) {
	t.Parallel()

	today := time.Now().In(kst).Format("2006.01.02.")
	row := func(id, date string) string {
		return `<li><dl><dt><a href="/article/` + id + `">[사설] 기사 ` + id + `</a></dt>
		<dd><span class="writing">매일경제</span><span class="date">` + date + `</span></dd></dl></li>`
	}
	list := `<ul class="list_body newsflash_body">` +
		row("1", "방금 전") + row("2", today) + row("3", "시간 미상") + row("4", "어제") +
		`</ul>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/list" {
			_, _ = w.Write([]byte(list))
			return
		}
		_, _ = w.Write([]byte(`<article id="dic_area">오늘의 사설 본문입니다.</article>`))
	}))
	defer server.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewEditorialScanner(server.Client(), nil))
	platform := NewStrategySource(reg, []scanner.Site{{Name: "naver", Platform: "editorial", BaseURL: server.URL + "/list"}}, nil)

	sources, err := platform.ListSources(context.Background())
	if err != nil || len(sources) != 1 {
		t.Fatalf("ListSources: %v %+v", err, sources)
	}

	window, err := domain.NewTimeWindow(time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := usecase.Drain(usecase.NewSourceReader(platform).Read(context.Background(), sources[0], window, 10))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected every listed article inside the window, got %d", len(msgs))
	}
	for _, msg := range msgs {
		if window.After(msg.Timestamp) || window.Before(msg.Timestamp) {
			t.Fatalf("message %s stamped %v outside %v..%v", msg.ID, msg.Timestamp, window.Start, window.End)
		}
	}
}
