package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeBotAPI struct {
	mu         sync.Mutex
	parseModes []string
	texts      []string
	rejectMD   bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Name Bot","username":"name_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mode := r.PostForm.Get("parse_mode")
			f.mu.Lock()
			f.parseModes = append(f.parseModes, mode)
			f.texts = append(f.texts, r.PostForm.Get("text"))
			reject := f.rejectMD && mode != ""
			f.mu.Unlock()
			if reject {
				_, _ = fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: unexpected end"}`)
				return
			}
			_, _ = fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestTelegram(t *testing.T, api *fakeBotAPI, webhookURL string) *Telegram {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	tg, err := NewTelegram(TelegramOptions{
		Token:       "123:abc",
		WebhookURL:  webhookURL,
		APIEndpoint: server.URL + "/bot%s/%s",
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("new telegram: %v", err)
	}
	return tg
}

func TestTelegram_SendFallsBackToPlainText(t *testing.T) {
	api := &fakeBotAPI{rejectMD: true}
	tg := newTestTelegram(t, api, "")
	if tg.Username() != "name_bot" {
		t.Fatalf("expected username from getMe, got %q", tg.Username())
	}

	if err := tg.Send(context.Background(), Reply{ChatID: 5, Text: "*bold", Markdown: true}); err != nil {
		t.Fatalf("send: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.parseModes) != 2 || api.parseModes[0] != "Markdown" || api.parseModes[1] != "" {
		t.Fatalf("expected markdown then plain attempts, got %q", api.parseModes)
	}
	if api.texts[1] != "*bold" {
		t.Fatalf("expected original text resent, got %q", api.texts[1])
	}
}

func TestTelegram_WebhookHandlerDispatches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tg := newTestTelegram(t, &fakeBotAPI{}, "https://bot.example.com/")
	if !tg.UseWebhook() {
		t.Fatalf("expected webhook mode")
	}
	if !strings.HasPrefix(tg.WebhookPath(), "/telegram/webhook/") || strings.Contains(tg.WebhookPath(), "123:abc") {
		t.Fatalf("unexpected webhook path %q", tg.WebhookPath())
	}

	handler := newRecordingHandler()
	dispatcher := NewDispatcher(context.Background(), handler)
	defer dispatcher.Stop()

	engine := gin.New()
	engine.POST(tg.WebhookPath(), tg.WebhookHandler(dispatcher))

	body := `{"update_id":10,"message":{"message_id":3,"date":0,"from":{"id":77,"is_bot":false,"first_name":"A"},"chat":{"id":770,"type":"private"},"text":" alice "}}`
	req := httptest.NewRequest(http.MethodPost, tg.WebhookPath(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	dispatcher.Wait()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if got := handler.handled[77]; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected dispatched message, got %v", got)
	}

	bad := httptest.NewRequest(http.MethodPost, tg.WebhookPath(), strings.NewReader("{"))
	badRec := httptest.NewRecorder()
	engine.ServeHTTP(badRec, bad)
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", badRec.Code)
	}
}
