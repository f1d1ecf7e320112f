// Package telegram executes the ordered delivery protocol against a
// channel via the bot API.
//
// Visual ordering (album before caption) is guaranteed by the reply link:
// Telegram cannot deliver a reply before its parent message exists. The
// fixed delays between steps only smooth perceived latency and keep the
// bot clear of tight-loop rate limits; correctness never depends on them.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
	"fashionfeed/internal/ports"
)

// Publisher posts one unit per Publish call, in strict step order:
// images (album, falling back to a single photo), courtesy delay, caption
// as a structural reply to the image anchor, second delay, decorative
// sticker. Only a caption failure fails the attempt.
type Publisher struct {
	apiBase      string
	token        string
	chatID       string
	stickers     []string
	captionDelay time.Duration
	stickerDelay time.Duration
	client       *http.Client
	logger       *slog.Logger

	sleep   func(ctx context.Context, d time.Duration)
	pickIdx func(n int) int
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot credentials and the decorative sticker pool.
func NewPublisher(cfg config.TelegramConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		apiBase:      strings.TrimSuffix(cfg.APIBaseURL, "/"),
		token:        cfg.BotToken,
		chatID:       cfg.ChannelID,
		stickers:     cfg.Stickers,
		captionDelay: cfg.CaptionDelay(),
		stickerDelay: cfg.StickerDelay(),
		client:       &http.Client{Timeout: cfg.RequestTimeout()},
		logger:       logger,
		sleep:        sleepCtx,
		pickIdx:      rand.Intn,
	}
}

// Publish runs the full sequence for one unit. A nil return means the
// caption reached the channel; the sticker step never changes that.
func (p *Publisher) Publish(ctx context.Context, unit domain.PublishUnit) error {
	anchor := p.sendImages(ctx, unit.ImageURLs)

	if anchor != 0 {
		p.sleep(ctx, p.captionDelay)
	}

	if err := p.sendCaption(ctx, unit.Caption, anchor); err != nil {
		return fmt.Errorf("send caption: %w", err)
	}

	if len(p.stickers) > 0 {
		p.sleep(ctx, p.stickerDelay)
		sticker := p.stickers[p.pickIdx(len(p.stickers))]
		if err := p.sendSticker(ctx, sticker); err != nil {
			p.warn("sticker failed", "error", err)
		}
	}

	return nil
}

// sendImages establishes the anchor message. Fallback chain: grouped album
// fails -> first image alone; that fails too -> no anchor, the caption
// stands on its own.
func (p *Publisher) sendImages(ctx context.Context, urls []string) int {
	switch {
	case len(urls) >= 2:
		anchor, err := p.sendMediaGroup(ctx, urls)
		if err == nil {
			return anchor
		}
		p.warn("album failed, trying single photo", "error", err)
		fallthrough
	case len(urls) == 1:
		anchor, err := p.sendPhoto(ctx, urls[0])
		if err != nil {
			p.warn("single photo failed", "error", err)
			return 0
		}
		return anchor
	default:
		return 0
	}
}

func (p *Publisher) sendMediaGroup(ctx context.Context, urls []string) (int, error) {
	type inputMediaPhoto struct {
		Type  string `json:"type"`
		Media string `json:"media"`
	}
	media := make([]inputMediaPhoto, 0, len(urls))
	for _, u := range urls {
		media = append(media, inputMediaPhoto{Type: "photo", Media: u})
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return 0, fmt.Errorf("marshal media: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("media", string(mediaJSON))
	form.Set("disable_notification", "true")

	var sent []struct {
		MessageID int `json:"message_id"`
	}
	if err := p.call(ctx, "sendMediaGroup", form, &sent); err != nil {
		return 0, err
	}
	if len(sent) == 0 {
		return 0, fmt.Errorf("empty media group response")
	}
	// Anchor on the last message of the group.
	return sent[len(sent)-1].MessageID, nil
}

func (p *Publisher) sendPhoto(ctx context.Context, photoURL string) (int, error) {
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("photo", photoURL)
	form.Set("disable_notification", "true")

	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := p.call(ctx, "sendPhoto", form, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (p *Publisher) sendCaption(ctx context.Context, caption string, anchor int) error {
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", caption)
	form.Set("parse_mode", "HTML")
	form.Set("link_preview_options", `{"is_disabled":true}`)
	form.Set("disable_notification", "true")
	if anchor != 0 {
		form.Set("reply_to_message_id", strconv.Itoa(anchor))
	}

	return p.call(ctx, "sendMessage", form, nil)
}

func (p *Publisher) sendSticker(ctx context.Context, fileID string) error {
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("sticker", fileID)
	form.Set("disable_notification", "true")

	return p.call(ctx, "sendSticker", form, nil)
}

// call posts a form to one bot method and decodes result into v when the
// API reports ok.
func (p *Publisher) call(ctx context.Context, method string, form url.Values, v any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", p.apiBase, p.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: decode response (%s): %w", method, resp.Status, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s: telegram error %s: %s", method, resp.Status, envelope.Description)
	}

	if v != nil {
		if err := json.Unmarshal(envelope.Result, v); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
