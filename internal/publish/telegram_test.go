package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

func TestTelegram_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botbot-token/sendPhoto" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("chat_id") != "-100" || !strings.HasPrefix(r.FormValue("caption"), "'a red barn'") {
			t.Errorf("unexpected fields chat=%q caption=%q", r.FormValue("chat_id"), r.FormValue("caption"))
		}
		file, _, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("expected photo: %v", err)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" {
			t.Errorf("unexpected photo bytes %q", data)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42,"chat":{"id":-100}}}`))
	}))
	defer server.Close()

	tg, err := NewTelegram(model.TelegramConfig{BotToken: "bot-token", ChatID: "-100", BaseURL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewTelegram failed: %v", err)
	}
	img := &model.Image{URL: "https://i.redd.it/a.jpg", Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}
	id, err := tg.Post(context.Background(), img, "'a red barn'\nVery Sure - 92%\nhttps://redd.it/a")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if id != "-100:42" {
		t.Errorf("unexpected id %q", id)
	}
}

func TestTelegram_PostError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	tg, _ := NewTelegram(model.TelegramConfig{BotToken: "t", ChatID: "1", BaseURL: server.URL}, server.Client())
	_, err := tg.Post(context.Background(), &model.Image{URL: "a.jpg", MIMEType: "image/jpeg"}, "c")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected telegram error description, got %v", err)
	}
}

func TestNewTelegram_Misconfigured(t *testing.T) {
	if _, err := NewTelegram(model.TelegramConfig{BotToken: "t"}, nil); err == nil {
		t.Error("expected error without chat id")
	}
}
