package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
)

// fakeBotAPI records method calls in order and lets tests fail chosen
// methods.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []string
	forms   []map[string]string
	failing map[string]bool
	nextID  int
}

func newFakeBotAPI() *fakeBotAPI {
	return &fakeBotAPI{failing: map[string]bool{}, nextID: 100}
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}

		f.mu.Lock()
		f.calls = append(f.calls, method)
		f.forms = append(f.forms, form)
		fail := f.failing[method]
		f.nextID++
		id := f.nextID
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"forced failure"}`))
			return
		}

		switch method {
		case "sendMediaGroup":
			var media []struct {
				Media string `json:"media"`
			}
			_ = json.Unmarshal([]byte(form["media"]), &media)
			msgs := make([]string, 0, len(media))
			for i := range media {
				msgs = append(msgs, fmt.Sprintf(`{"message_id":%d}`, id+i))
			}
			_, _ = fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, strings.Join(msgs, ","))
		default:
			_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d}}`, id)
		}
	})
}

func (f *fakeBotAPI) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBotAPI) formFor(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, call := range f.calls {
		if call == method {
			return f.forms[i]
		}
	}
	return nil
}

func newTestPublisher(t *testing.T, api *fakeBotAPI, stickers []string) (*Publisher, func()) {
	t.Helper()
	server := httptest.NewServer(api.handler())
	cfg := config.TelegramConfig{
		BotToken:          "test-token",
		ChannelID:         "@testchan",
		APIBaseURL:        server.URL,
		Stickers:          stickers,
		CaptionDelaySecs:  2,
		StickerDelaySecs:  1.5,
		RequestTimeoutSec: 5,
	}
	p := NewPublisher(cfg, nil)
	p.sleep = func(context.Context, time.Duration) {}
	p.pickIdx = func(int) int { return 0 }
	return p, server.Close
}

func TestPublishAlbumThenReplyCaption(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	p, closeFn := newTestPublisher(t, api, []string{"sticker-1"})
	defer closeFn()

	unit := domain.PublishUnit{
		ImageURLs: []string{"https://cdn.example.ir/a.jpg", "https://cdn.example.ir/b.jpg", "https://cdn.example.ir/c.jpg"},
		Caption:   "<b>عنوان</b>",
	}
	if err := p.Publish(context.Background(), unit); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	order := api.callOrder()
	want := []string{"sendMediaGroup", "sendMessage", "sendSticker"}
	if len(order) != len(want) {
		t.Fatalf("unexpected call sequence: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %v", i, want[i], order)
		}
	}

	msg := api.formFor("sendMessage")
	if msg["reply_to_message_id"] == "" {
		t.Fatalf("caption must reply to the album anchor")
	}
	if msg["parse_mode"] != "HTML" {
		t.Fatalf("caption must use HTML parse mode")
	}
	if !strings.Contains(msg["link_preview_options"], "true") {
		t.Fatalf("link preview must be disabled")
	}
}

func TestPublishAnchorIsLastAlbumMessage(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	p, closeFn := newTestPublisher(t, api, nil)
	defer closeFn()

	unit := domain.PublishUnit{
		ImageURLs: []string{"https://cdn.example.ir/a.jpg", "https://cdn.example.ir/b.jpg"},
		Caption:   "c",
	}
	if err := p.Publish(context.Background(), unit); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	group := api.formFor("sendMediaGroup")
	var media []struct {
		Media string `json:"media"`
	}
	if err := json.Unmarshal([]byte(group["media"]), &media); err != nil || len(media) != 2 {
		t.Fatalf("media group payload wrong: %q", group["media"])
	}

	msg := api.formFor("sendMessage")
	// Fake assigns id, id+1 to the two album messages; anchor must be id+1.
	if msg["reply_to_message_id"] != "102" {
		t.Fatalf("anchor must be the last group message, got %q", msg["reply_to_message_id"])
	}
}

func TestPublishAlbumFailureFallsBackToSinglePhoto(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	api.failing["sendMediaGroup"] = true
	p, closeFn := newTestPublisher(t, api, nil)
	defer closeFn()

	unit := domain.PublishUnit{
		ImageURLs: []string{"https://cdn.example.ir/a.jpg", "https://cdn.example.ir/b.jpg"},
		Caption:   "c",
	}
	if err := p.Publish(context.Background(), unit); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	order := api.callOrder()
	want := []string{"sendMediaGroup", "sendPhoto", "sendMessage"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected fallback sequence %v, got %v", want, order)
		}
	}

	photo := api.formFor("sendPhoto")
	if photo["photo"] != "https://cdn.example.ir/a.jpg" {
		t.Fatalf("fallback must send the first image, got %q", photo["photo"])
	}
	if api.formFor("sendMessage")["reply_to_message_id"] == "" {
		t.Fatalf("caption should anchor on the fallback photo")
	}
}

func TestPublishAllImageSendsFailStillPostsCaption(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	api.failing["sendMediaGroup"] = true
	api.failing["sendPhoto"] = true
	p, closeFn := newTestPublisher(t, api, nil)
	defer closeFn()

	unit := domain.PublishUnit{
		ImageURLs: []string{"https://cdn.example.ir/a.jpg", "https://cdn.example.ir/b.jpg"},
		Caption:   "c",
	}
	if err := p.Publish(context.Background(), unit); err != nil {
		t.Fatalf("image failures must not fail the post: %v", err)
	}

	if msg := api.formFor("sendMessage"); msg["reply_to_message_id"] != "" {
		t.Fatalf("caption must be standalone when no anchor exists")
	}
}

func TestPublishNoImagesSkipsImageCalls(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	p, closeFn := newTestPublisher(t, api, nil)
	defer closeFn()

	if err := p.Publish(context.Background(), domain.PublishUnit{Caption: "c"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	order := api.callOrder()
	if len(order) != 1 || order[0] != "sendMessage" {
		t.Fatalf("expected lone sendMessage, got %v", order)
	}
}

func TestPublishCaptionFailureIsFatal(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	api.failing["sendMessage"] = true
	p, closeFn := newTestPublisher(t, api, []string{"sticker-1"})
	defer closeFn()

	unit := domain.PublishUnit{
		ImageURLs: []string{"https://cdn.example.ir/a.jpg"},
		Caption:   "c",
	}
	if err := p.Publish(context.Background(), unit); err == nil {
		t.Fatalf("caption failure must fail the publish attempt")
	}
}

func TestPublishStickerFailureIgnored(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	api.failing["sendSticker"] = true
	p, closeFn := newTestPublisher(t, api, []string{"sticker-1", "sticker-2"})
	defer closeFn()

	if err := p.Publish(context.Background(), domain.PublishUnit{Caption: "c"}); err != nil {
		t.Fatalf("sticker failure must never flip the outcome: %v", err)
	}

	order := api.callOrder()
	if order[len(order)-1] != "sendSticker" {
		t.Fatalf("sticker should still be attempted: %v", order)
	}
}

func TestPublishSinglePhotoAnchor(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI()
	p, closeFn := newTestPublisher(t, api, nil)
	defer closeFn()

	unit := domain.PublishUnit{ImageURLs: []string{"https://cdn.example.ir/a.jpg"}, Caption: "c"}
	if err := p.Publish(context.Background(), unit); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	order := api.callOrder()
	if order[0] != "sendPhoto" || order[1] != "sendMessage" {
		t.Fatalf("expected photo then caption, got %v", order)
	}
	if api.formFor("sendMessage")["reply_to_message_id"] == "" {
		t.Fatalf("caption must reply to the photo anchor")
	}
}
