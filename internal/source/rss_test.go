package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

const redditAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>hot</title>
  <entry>
    <id>t3_abc1</id>
    <title>Morning fog</title>
    <link href="https://www.reddit.com/r/itookapicture/comments/abc1/morning_fog/"/>
    <content type="html">&lt;a href="https://www.reddit.com/user/someone"&gt;/u/someone&lt;/a&gt; &lt;a href="https://i.redd.it/abc1.jpg"&gt;[link]&lt;/a&gt;</content>
  </entry>
  <entry>
    <id>t3_abc2</id>
    <title>Gallery</title>
    <link href="https://www.reddit.com/r/itookapicture/comments/abc2/gallery/"/>
    <content type="html">&lt;a href="https://www.reddit.com/gallery/abc2"&gt;[link]&lt;/a&gt; &lt;a href="https://www.reddit.com/r/itookapicture/comments/abc2/"&gt;[comments]&lt;/a&gt;</content>
  </entry>
  <entry>
    <id>t3_abc3</id>
    <title>Third</title>
    <link href="https://www.reddit.com/r/itookapicture/comments/abc3/third/"/>
    <content type="html">&lt;p&gt;no anchors&lt;/p&gt;</content>
  </entry>
</feed>`

func TestRSS_ListCandidates(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(redditAtom))
	}))
	defer server.Close()

	src := NewRSS(model.RSSConfig{FeedURLTemplate: server.URL + "/r/%s/hot/.rss"}, server.Client(), nil, "test-agent", nil)
	items, err := src.ListCandidates(context.Background(), "itookapicture", 2)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}

	if gotPath != "/r/itookapicture/hot/.rss" {
		t.Errorf("unexpected feed path %q", gotPath)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].ID != "abc1" || items[0].Permalink != "https://redd.it/abc1" {
		t.Errorf("unexpected first item identity: %+v", items[0])
	}
	if items[0].URL != "https://i.redd.it/abc1.jpg" {
		t.Errorf("expected image anchor, got %q", items[0].URL)
	}
	if items[1].URL != "https://www.reddit.com/gallery/abc2" {
		t.Errorf("expected [link] anchor fallback, got %q", items[1].URL)
	}
}

func TestEntryImageURL_Precedence(t *testing.T) {
	entry := &gofeed.Item{
		Link:       "https://example.com/post",
		Image:      &gofeed.Image{URL: "https://example.com/feed-image.png"},
		Enclosures: []*gofeed.Enclosure{{URL: "https://example.com/enc.jpg", Type: "image/jpeg"}},
		Content:    `<a href="https://example.com/anchor.gif">x</a>`,
	}
	if got := entryImageURL(entry); got != "https://example.com/feed-image.png" {
		t.Errorf("expected feed image first, got %q", got)
	}

	entry.Image = nil
	if got := entryImageURL(entry); got != "https://example.com/enc.jpg" {
		t.Errorf("expected enclosure second, got %q", got)
	}

	entry.Enclosures = nil
	if got := entryImageURL(entry); got != "https://example.com/anchor.gif" {
		t.Errorf("expected image anchor third, got %q", got)
	}

	entry.Content = ""
	if got := entryImageURL(entry); got != "https://example.com/post" {
		t.Errorf("expected entry link last, got %q", got)
	}
}

func TestItemFromEntry_NonRedditGUID(t *testing.T) {
	item, ok := itemFromEntry(&gofeed.Item{GUID: "urn:post:9", Link: "https://blog.example/9"}, "art")
	if !ok {
		t.Fatal("expected item")
	}
	if item.ID != "urn:post:9" || item.Permalink != "https://blog.example/9" {
		t.Errorf("unexpected item: %+v", item)
	}

	if _, ok := itemFromEntry(&gofeed.Item{}, "art"); ok {
		t.Error("expected entry without id or link to be dropped")
	}
}
