package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"JobScanner/internal/config"
)

func newTestNotifier(serverURL string) *Notifier {
	return NewNotifier(config.TelegramConfig{BotToken: "token", ChatID: "42", Timeout: time.Second}).WithAPIBase(serverURL)
}

func captureForm(t *testing.T, status int, body string) (*httptest.Server, chan url.Values) {
	t.Helper()
	forms := make(chan url.Values, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		forms <- r.PostForm
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, forms
}

func TestPublishDigestSendsPlainText(t *testing.T) {
	t.Parallel()

	server, forms := captureForm(t, http.StatusOK, `{"ok":true}`)
	digest := "Job scan finished\n- Board: failed (fetch https://jobs.test/list_all?page=1 after 3 attempts: page unavailable: [502])"

	if err := newTestNotifier(server.URL).PublishDigest(context.Background(), digest); err != nil {
		t.Fatalf("PublishDigest error: %v", err)
	}

	form := <-forms
	if form.Get("chat_id") != "42" {
		t.Fatalf("unexpected chat id %q", form.Get("chat_id"))
	}
	if form.Get("text") != digest {
		t.Fatalf("text must be sent verbatim, got %q", form.Get("text"))
	}
	if _, ok := form["parse_mode"]; ok {
		t.Fatalf("digest must not request entity parsing, got parse_mode=%q", form.Get("parse_mode"))
	}
}

func TestPublishDigestTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	server, forms := captureForm(t, http.StatusOK, `{"ok":true}`)
	long := strings.Repeat("é", maxMessageRunes+100)

	if err := newTestNotifier(server.URL).PublishDigest(context.Background(), long); err != nil {
		t.Fatalf("PublishDigest error: %v", err)
	}

	text := (<-forms).Get("text")
	if n := utf8.RuneCountInString(text); n != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, n)
	}
	if !strings.HasSuffix(text, truncatedSuffix) {
		t.Fatal("truncated text must end with the marker")
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier(config.TelegramConfig{}).PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}

	server, _ := captureForm(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	err := newTestNotifier(server.URL).PublishDigest(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected status error with description, got %v", err)
	}
}

func TestNewNotifierUsesConfiguredTimeout(t *testing.T) {
	t.Parallel()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", Timeout: 3 * time.Second})
	if n.client.Timeout != 3*time.Second {
		t.Fatalf("unexpected client timeout %v", n.client.Timeout)
	}
}
