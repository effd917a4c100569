package parser

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/scanner"
)

const editorialListURL = "https://news.naver.com/main/list.naver?mode=LSD&mid=sec&sid1=110"

var (
	relativeExpr = regexp.MustCompile(`(\d+)\s*(분|시간|일)\s*전`)
	absoluteExpr = regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}\.\s*\d{1,2}:\d{2}`)
	dateOnlyExpr = regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}\.?`)
	kst          = time.FixedZone("KST", 9*60*60)
)

// EditorialScanner reads a newspaper opinion list page. Every press on the
// list is a source and every listed article a message whose body is the
// headline followed by the article text.
type EditorialScanner struct {
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

var _ scanner.Platform = (*EditorialScanner)(nil)

// NewEditorialScanner wires an HTTP client.
func NewEditorialScanner(client *http.Client, logger *slog.Logger) *EditorialScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EditorialScanner{client: defaultClient(client), now: time.Now, logger: logger}
}

// Name identifies the strategy inside the registry.
func (e *EditorialScanner) Name() string {
	return "editorial"
}

type listing struct {
	title string
	link  string
	press string
	at    time.Time
}

// ListSources returns one source per press found on the list page, in page
// order. The Site field carries the list URL so reads hit the same page.
func (e *EditorialScanner) ListSources(ctx context.Context, site scanner.Site) ([]domain.Source, error) {
	listURL := site.BaseURL
	if listURL == "" {
		listURL = editorialListURL
	}

	items, err := e.fetchListing(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("editorial list %s: %w", site.Name, err)
	}

	seen := map[string]struct{}{}
	var sources []domain.Source
	for _, item := range items {
		if _, ok := seen[item.press]; ok {
			continue
		}
		seen[item.press] = struct{}{}
		sources = append(sources, domain.Source{ID: item.press, Name: item.press, Site: listURL, Readable: true})
	}
	return sources, nil
}

// StreamMessages yields the press's listed articles newest first. An
// article whose body cannot be located is skipped.
func (e *EditorialScanner) StreamMessages(ctx context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		listURL := source.Site
		if listURL == "" {
			listURL = editorialListURL
		}

		items, err := e.fetchListing(ctx, listURL)
		if err != nil {
			yield(domain.Message{}, fmt.Errorf("editorial list: %w", err))
			return
		}

		produced := 0
		for _, item := range items {
			if item.press != source.ID {
				continue
			}
			if limit > 0 && produced >= limit {
				return
			}

			body, err := e.fetchBody(ctx, item.link)
			if err != nil {
				if ctx.Err() != nil {
					yield(domain.Message{}, ctx.Err())
					return
				}
				e.logger.Warn("article skipped", "press", item.press, "url", item.link, "error", err)
				continue
			}

			msg := domain.Message{
				ID:         item.link,
				SourceID:   source.ID,
				SourceName: source.Name,
				Timestamp:  item.at,
				Body:       item.title + "\n" + body,
			}
			if !yield(msg, nil) {
				return
			}
			produced++
		}
	}
}

func (e *EditorialScanner) fetchListing(ctx context.Context, listURL string) ([]listing, error) {
	doc, err := fetchDocument(ctx, e.client, listURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("invalid list url %s: %w", listURL, err)
	}

	// Listed times never pass the end of the run's window: an article the
	// page dates loosely was already out when the run started.
	now := e.now()
	ceiling := now
	if w, ok := domain.WindowFrom(ctx); ok && w.End.Before(ceiling) {
		ceiling = w.End
	}

	var items []listing
	doc.Find(".list_body.newsflash_body li").Each(func(_ int, li *goquery.Selection) {
		// The first anchor of a photo row only wraps the thumbnail.
		var link *goquery.Selection
		li.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.TrimSpace(a.Text()) == "" {
				return true
			}
			link = a
			return false
		})
		if link == nil {
			return
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		ref, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		title := strings.TrimSpace(link.Text())
		press := strings.TrimSpace(li.Find(".writing").First().Text())
		if press == "" {
			press = "Unknown"
		}
		items = append(items, listing{
			title: title,
			link:  ref.String(),
			press: press,
			at:    listedAt(strings.TrimSpace(li.Find(".date").First().Text()), now, ceiling),
		})
	})
	return items, nil
}

func (e *EditorialScanner) fetchBody(ctx context.Context, link string) (string, error) {
	doc, err := fetchDocument(ctx, e.client, link)
	if err != nil {
		return "", err
	}
	area := doc.Find("#dic_area").First()
	if area.Length() == 0 {
		area = doc.Find("#newsct_article").First()
	}
	if area.Length() == 0 {
		return "", fmt.Errorf("article body not found")
	}
	return strings.Join(strings.Fields(area.Text()), " "), nil
}

func listedAt(text string, now, ceiling time.Time) time.Time {
	ts, ok := parseListedAt(text, now)
	if !ok || ts.After(ceiling) {
		return ceiling
	}
	return ts
}

// parseListedAt understands "방금 전", "N분 전", "N시간 전", "N일 전", "어제",
// "2006.01.02. 15:04" and "2006.01.02." in Korean time.
func parseListedAt(text string, now time.Time) (time.Time, bool) {
	if strings.Contains(text, "방금") {
		return now, true
	}
	if m := relativeExpr.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "분":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "시간":
			return now.Add(-time.Duration(n) * time.Hour), true
		default:
			return now.AddDate(0, 0, -n), true
		}
	}
	if strings.Contains(text, "어제") {
		return now.AddDate(0, 0, -1), true
	}
	if m := absoluteExpr.FindString(text); m != "" {
		normalized := strings.Join(strings.Fields(m), " ")
		if ts, err := time.ParseInLocation("2006.01.02. 15:04", normalized, kst); err == nil {
			return ts, true
		}
	}
	if m := dateOnlyExpr.FindString(text); m != "" {
		if ts, err := time.ParseInLocation("2006.01.02", strings.TrimSuffix(m, "."), kst); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
