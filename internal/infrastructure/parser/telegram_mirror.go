package parser

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ChatDigest/internal/domain"
	"ChatDigest/internal/scanner"
)

const telegramBaseURL = "https://t.me"

// TelegramMirror reads public channels through their t.me/s/<channel> preview.
type TelegramMirror struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ scanner.Platform = (*TelegramMirror)(nil)

// NewTelegramMirror wires an HTTP client; baseURL defaults to https://t.me.
func NewTelegramMirror(client *http.Client, baseURL string, logger *slog.Logger) *TelegramMirror {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TelegramMirror{client: defaultClient(client), baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// Name identifies the strategy inside the registry.
func (t *TelegramMirror) Name() string {
	return "telegram"
}

// ListSources probes every configured channel. A channel whose preview is
// missing or forbidden is listed as not readable.
func (t *TelegramMirror) ListSources(ctx context.Context, site scanner.Site) ([]domain.Source, error) {
	if len(site.Channels) == 0 {
		return nil, fmt.Errorf("no channels provided for site %s", site.Name)
	}

	sources := make([]domain.Source, 0, len(site.Channels))
	for _, channel := range site.Channels {
		channel = strings.TrimPrefix(strings.TrimSpace(channel), "@")
		if channel == "" {
			continue
		}
		src := domain.Source{ID: channel, Name: channel, Site: site.Name}

		doc, err := fetchDocument(ctx, t.client, channelURL(t.baseURL, channel, 0))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.Warn("channel not readable", "channel", channel, "error", err)
			sources = append(sources, src)
			continue
		}

		if title := strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text()); title != "" {
			src.Name = title
		}
		src.Readable = hasPreview(doc)
		sources = append(sources, src)
	}
	return sources, nil
}

// StreamMessages yields the channel's posts newest first, paging backwards
// with ?before=<id> until limit posts were produced or history ends.
func (t *TelegramMirror) StreamMessages(ctx context.Context, source domain.Source, limit int) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		produced := 0
		before := 0
		for first := true; limit <= 0 || produced < limit; first = false {
			doc, err := fetchDocument(ctx, t.client, channelURL(t.baseURL, source.ID, before))
			if err != nil {
				yield(domain.Message{}, fmt.Errorf("channel %s: %w", source.ID, err))
				return
			}
			if first && !hasPreview(doc) {
				yield(domain.Message{}, fmt.Errorf("channel %s has no public preview: %w", source.ID, domain.ErrPermissionDenied))
				return
			}

			posts := parsePosts(doc, source)
			if len(posts) == 0 {
				return
			}

			oldest := before
			for i := len(posts) - 1; i >= 0; i-- {
				post := posts[i]
				if !yield(post.message, nil) {
					return
				}
				produced++
				if limit > 0 && produced >= limit {
					return
				}
				if oldest == 0 || post.seq < oldest {
					oldest = post.seq
				}
			}

			if oldest <= 1 || (before != 0 && oldest >= before) {
				return
			}
			before = oldest
		}
	}
}

type post struct {
	seq     int
	message domain.Message
}

// parsePosts returns the page's posts in page order (oldest first).
func parsePosts(doc *goquery.Document, source domain.Source) []post {
	var posts []post
	doc.Find(".tgme_widget_message[data-post]").Each(func(_ int, sel *goquery.Selection) {
		p, err := parsePost(sel, source)
		if err != nil {
			return
		}
		posts = append(posts, p)
	})
	return posts
}

func parsePost(sel *goquery.Selection, source domain.Source) (post, error) {
	ref, _ := sel.Attr("data-post")
	slash := strings.LastIndexByte(ref, '/')
	if slash < 0 {
		return post{}, errors.New("malformed post reference")
	}
	seq, err := strconv.Atoi(ref[slash+1:])
	if err != nil {
		return post{}, fmt.Errorf("post id %q: %w", ref, err)
	}

	stamp, _ := sel.Find(".tgme_widget_message_date time").First().Attr("datetime")
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return post{}, fmt.Errorf("post %s timestamp: %w", ref, err)
	}

	return post{
		seq: seq,
		message: domain.Message{
			ID:         ref,
			SourceID:   source.ID,
			SourceName: source.Name,
			Timestamp:  ts,
			Body:       messageText(sel.Find(".tgme_widget_message_text").First()),
		},
	}, nil
}

// messageText keeps line breaks that the preview renders as <br>.
func messageText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	sel = sel.Clone()
	sel.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(sel.Text())
}

func hasPreview(doc *goquery.Document) bool {
	return doc.Find(".tgme_channel_history, .tgme_widget_message").Length() > 0
}

func channelURL(base, channel string, before int) string {
	u := base + "/s/" + url.PathEscape(channel)
	if before > 0 {
		u += "?before=" + strconv.Itoa(before)
	}
	return u
}
