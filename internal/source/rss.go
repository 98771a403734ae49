package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/validate"
	"github.com/danielorf/ArtCaptionBot/internal/worker"
)

// redditThingPrefix marks link ids in reddit feeds ("t3_abc123")
const redditThingPrefix = "t3_"

// RSS lists entries of an RSS or Atom feed built from a URL template
type RSS struct {
	parser   *gofeed.Parser
	template string
	logger   *slog.Logger
}

// NewRSS creates a feed source. template must contain one %s for the category.
func NewRSS(cfg model.RSSConfig, httpClient *http.Client, limiter *worker.Limiter, userAgent string, logger *slog.Logger) *RSS {
	parser := gofeed.NewParser()
	if httpClient != nil {
		client := *httpClient
		if limiter != nil {
			client.Transport = limiter.Transport(httpClient.Transport)
		}
		parser.Client = &client
	}
	parser.UserAgent = userAgent

	if logger == nil {
		logger = slog.Default()
	}

	return &RSS{
		parser:   parser,
		template: cfg.FeedURLTemplate,
		logger:   logger.With("component", "source.rss"),
	}
}

// Name returns the source identifier
func (r *RSS) Name() string {
	return "rss"
}

// ListCandidates parses the category's feed and maps its first limit entries
func (r *RSS) ListCandidates(ctx context.Context, category string, limit int) ([]model.ContentItem, error) {
	limit = normalizeLimit(limit)
	feedURL := fmt.Sprintf(r.template, category)

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	count := min(len(feed.Items), limit)
	items := make([]model.ContentItem, 0, count)
	for _, entry := range feed.Items[:count] {
		item, ok := itemFromEntry(entry, category)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	r.logger.Debug("listed candidates", "category", category, "feed", feedURL, "count", len(items))
	return items, nil
}

func itemFromEntry(entry *gofeed.Item, category string) (model.ContentItem, bool) {
	id := entry.GUID
	permalink := entry.Link
	if strings.HasPrefix(id, redditThingPrefix) {
		id = strings.TrimPrefix(id, redditThingPrefix)
		permalink = redditShortURL + id
	}
	if id == "" {
		id = entry.Link
	}
	if id == "" {
		return model.ContentItem{}, false
	}

	return model.ContentItem{
		ID:        id,
		Title:     entry.Title,
		URL:       entryImageURL(entry),
		Permalink: permalink,
		Category:  category,
	}, true
}

// entryImageURL picks the entry's image: the feed image or an image enclosure
// first, then the first anchor in the body whose href is an allowed format,
// then the "[link]" anchor reddit feeds place on every post.
func entryImageURL(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	imageHref, linkHref := scanAnchors(body)
	if imageHref != "" {
		return imageHref
	}
	if linkHref != "" {
		return linkHref
	}
	return entry.Link
}

// scanAnchors returns the first href with an allowed image extension and
// the href of the first anchor whose text is "[link]"
func scanAnchors(htmlContent string) (imageHref, linkHref string) {
	if htmlContent == "" {
		return "", ""
	}
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if imageHref != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if href != "" {
				if validate.IsAllowedFormat(href) {
					imageHref = href
					return
				}
				if linkHref == "" && strings.TrimSpace(textOf(n)) == "[link]" {
					linkHref = href
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return imageHref, linkHref
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
