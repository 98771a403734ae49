package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

const defaultTelegramAPI = "https://api.telegram.org"

// telegramCaptionLimit is the Bot API caption length limit (characters)
const telegramCaptionLimit = 1024

// Telegram sends the image to a chat via the bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegram registers bot token and chat identifier
func NewTelegram(cfg model.TelegramConfig, httpClient *http.Client) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram publisher misconfigured: bot token and chat id are required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTelegramAPI
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  baseURL,
		client:   httpClient,
	}, nil
}

// Name returns the publisher name
func (t *Telegram) Name() string {
	return "telegram"
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"result"`
}

// Post uploads the photo with sendPhoto and returns "<chat>:<message>"
func (t *Telegram) Post(ctx context.Context, img *model.Image, caption string) (string, error) {
	if r := []rune(caption); len(r) > telegramCaptionLimit {
		caption = string(r[:telegramCaptionLimit])
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", t.chatID); err != nil {
		return "", fmt.Errorf("write chat_id: %w", err)
	}
	if err := w.WriteField("caption", caption); err != nil {
		return "", fmt.Errorf("write caption: %w", err)
	}
	if err := writeImagePart(w, "photo", img); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("telegram error: %s", resp.Status)
	}
	if !out.OK {
		return "", fmt.Errorf("telegram error (%d): %s", out.ErrorCode, out.Description)
	}

	chat := t.chatID
	if out.Result.Chat.ID != 0 {
		chat = strconv.FormatInt(out.Result.Chat.ID, 10)
	}
	return chat + ":" + strconv.FormatInt(out.Result.MessageID, 10), nil
}
