package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielorf/ArtCaptionBot/internal/logging"
	"github.com/danielorf/ArtCaptionBot/internal/model"
)

func TestAssemble_DryRunEndToEnd(t *testing.T) {
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/r/pics/hot.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"kind":"t3","data":{"id":"v1","title":"clip","url":"` + serverURL + `/img/v1.mp4"}},
			{"kind":"t3","data":{"id":"p1","title":"barn","url":"` + serverURL + `/img/p1.png"}}
		]}}`))
	})
	mux.HandleFunc("/vision/v1.0/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key")
		}
		if !strings.Contains(r.URL.RawQuery, "Adult") {
			t.Errorf("expected adult facet, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"description":{"captions":[{"text":"a red barn","confidence":0.92}]},"adult":{"isAdultContent":false}}`))
	})
	mux.HandleFunc("/img/p1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(imgBuf.Bytes())
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	cfg := model.DefaultConfig()
	cfg.Pipeline.Categories = []string{"pics"}
	cfg.Pipeline.RetryDelay = 0
	cfg.Pipeline.PublishBackoff = 0
	cfg.Source.Reddit.BaseURL = server.URL
	cfg.History.Backend = "none"
	cfg.Annotator.Endpoint = server.URL
	cfg.Annotator.APIKey = "test-key"
	cfg.Publisher.Backend = "dryrun"
	cfg.Cache.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0

	rt, err := Assemble(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.Source != "reddit" || rt.Annotator != "azure" || rt.Publisher != "dryrun" {
		t.Errorf("unexpected collaborators: %s/%s/%s", rt.Source, rt.Annotator, rt.Publisher)
	}

	report, err := rt.Controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if want := "'a red barn'\nVery Sure - 92%\nhttps://redd.it/p1"; report.Caption != want {
		t.Errorf("caption = %q, want %q", report.Caption, want)
	}
	pub := report.Publication
	if pub == nil || !strings.HasPrefix(pub.ID, "dryrun-") {
		t.Fatalf("unexpected publication %+v", pub)
	}
	if pub.RunID != report.RunID || pub.Annotation == nil || pub.Annotation.CaptionText != "a red barn" {
		t.Errorf("publication missing run metadata: %+v", pub)
	}
}

func TestAssemble_RejectsUnknownBackends(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.History.Backend = "none"
	cfg.Annotator.APIKey = "k"
	cfg.Publisher.Backend = "carrier-pigeon"

	if _, err := Assemble(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("expected error for unknown publisher")
	}
}
