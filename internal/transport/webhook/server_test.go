package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

type captureHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	ctxErr  error
}

func (c *captureHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
	c.ctxErr = ctx.Err()
}

type fixedStats struct{ active, queued int }

func (f fixedStats) ActiveCount() int { return f.active }
func (f fixedStats) QueuedCount() int { return f.queued }

func TestUpdateIsDecodedAndDispatched(t *testing.T) {
	h := &captureHandler{}
	srv := httptest.NewServer(NewServer(":0", "/hook/secret", h, nil).Router())
	defer srv.Close()

	body := `{"update_id":7,"message":{"message_id":3,"chat":{"id":42,"type":"private"},"text":"https://youtu.be/abc"}}`
	resp, err := http.Post(srv.URL+"/hook/secret", jsonContentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if len(h.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(h.updates))
	}
	u := h.updates[0]
	if u.UpdateID != 7 || u.Message == nil || u.Message.Chat.ID != 42 || u.Message.Text != "https://youtu.be/abc" {
		t.Errorf("decoded update = %+v", u)
	}
	if h.ctxErr != nil {
		t.Errorf("handler context already done: %v", h.ctxErr)
	}
}

func TestInvalidBodyRejected(t *testing.T) {
	h := &captureHandler{}
	srv := httptest.NewServer(NewServer(":0", DefaultPath, h, nil).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+DefaultPath, jsonContentType, strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(h.updates) != 0 {
		t.Errorf("handler called for invalid body")
	}
}

func TestWrongPathAndMethod(t *testing.T) {
	h := &captureHandler{}
	srv := httptest.NewServer(NewServer(":0", "/hook/secret", h, nil).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/hook/other", jsonContentType, strings.NewReader(`{"update_id":1}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("wrong path status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/hook/secret")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", DefaultPath, &captureHandler{}, fixedStats{active: 1, queued: 2}).Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+healthPath, http.NoBody)
	req.Header.Set("X-Request-ID", "fixed-id")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body["status"] != "ok" || body["active_downloads"] != float64(1) || body["queued_downloads"] != float64(2) {
		t.Errorf("health body = %v", body)
	}
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://bot.example.com/tg/abc123", "/tg/abc123"},
		{"https://bot.example.com/tg/abc123/", "/tg/abc123"},
		{"https://bot.example.com", DefaultPath},
		{"https://bot.example.com/", DefaultPath},
		{"://bad", DefaultPath},
	}
	for _, tt := range tests {
		if got := PathFromURL(tt.url); got != tt.want {
			t.Errorf("PathFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context id = %q", got)
	}
	if got := RequestIDFromContext(WithRequestID(context.Background(), "x")); got != "x" {
		t.Errorf("id = %q, want x", got)
	}
}
