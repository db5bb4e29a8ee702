package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestNotifier(url string) *TelegramNotifier {
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = url
	return tn
}

func TestSend(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	tn := newTestNotifier(srv.URL)
	if err := tn.Send(context.Background(), HTML("<b>hello</b>")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := sendMessageRequest{ChatID: "42", Text: "<b>hello</b>", ParseMode: "HTML", DisableWebPagePreview: true}
	if got != want {
		t.Errorf("unexpected payload: %+v", got)
	}

	got = sendMessageRequest{}
	if err := tn.Send(context.Background(), Message{Text: "a < b", Plain: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ParseMode != "" {
		t.Errorf("plain message should have no parse mode, got %q", got.ParseMode)
	}
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).Send(context.Background(), HTML("hello"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Description != "chat not found" || apiErr.Temporary() {
		t.Errorf("unexpected API error %+v", apiErr)
	}
}

func TestSend_SplitsLongMessages(t *testing.T) {
	var (
		mu     sync.Mutex
		chunks []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		chunks = append(chunks, req.Text)
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	line := strings.Repeat("x", 99) + "\n"
	text := strings.Repeat(line, 100) // 10000 runes
	if err := newTestNotifier(srv.URL).Send(context.Background(), HTML(text)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > MaxMessageLen {
			t.Errorf("chunk of %d runes exceeds the limit", n)
		}
		total += strings.Count(c, "x")
	}
	if total != 9900 {
		t.Errorf("text lost in splitting: %d of 9900 characters", total)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  []string
	}{
		{"short", 10, []string{"short"}},
		{"aaa\nbbb\nccc", 8, []string{"aaa\nbbb", "ccc"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"ééé\nüü", 4, []string{"ééé", "üü"}},
	}
	for _, tt := range tests {
		if got := SplitMessage(tt.text, tt.limit); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitMessage(%q, %d): expected %q, got %q", tt.text, tt.limit, tt.want, got)
		}
	}
}

func TestNotify_RecoversAfterFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	start := time.Now()
	if err := newTestNotifier(srv.URL).Notify(context.Background(), HTML("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
	if time.Since(start) < time.Second {
		t.Error("retry_after was not honoured")
	}
}

func TestNotify_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`))
	}))
	defer srv.Close()

	if err := newTestNotifier(srv.URL).Notify(context.Background(), HTML("hello")); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
}

func TestNotify_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tn := newTestNotifier(srv.URL)
	tn.MaxRetries = 5
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := tn.Notify(ctx, HTML("hello")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
		want Command
	}{
		{"hello", false, Command{}},
		{"", false, Command{}},
		{"/report", true, Command{Name: "/report", Options: map[string]string{}}},
		{" /Segments@shoplens_bot ", true, Command{Name: "/segments", Options: map[string]string{}}},
		{"/customer C042", true, Command{Name: "/customer", Args: []string{"C042"}, Options: map[string]string{}}},
		{"/run k=5 Horizon=6 extra", true, Command{
			Name: "/run", Args: []string{"extra"}, Options: map[string]string{"k": "5", "horizon": "6"},
		}},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		if ok != tt.ok {
			t.Errorf("%q: expected ok=%v, got %v", tt.text, tt.ok, ok)
			continue
		}
		if ok && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q: expected %+v, got %+v", tt.text, tt.want, got)
		}
	}
}

func TestStartPolling(t *testing.T) {
	var (
		mu      sync.Mutex
		served  bool
		replies []sendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			var req getUpdatesRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			first := !served
			served = true
			mu.Unlock()
			if first {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":6,"message":{"text":"/run","chat":{"id":99}}},
					{"update_id":7,"message":{"text":" /customer@shoplens_bot C1 ","chat":{"id":42}}}]}`))
				return
			}
			if req.Offset != 8 {
				t.Errorf("expected offset 8, got %d", req.Offset)
			}
			time.Sleep(20 * time.Millisecond)
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req sendMessageRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			replies = append(replies, req)
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	var handled []Command
	tn := newTestNotifier(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(_ context.Context, cmd Command) Message {
			mu.Lock()
			handled = append(handled, cmd)
			mu.Unlock()
			return HTML("got " + cmd.Name + " " + strings.Join(cmd.Args, ","))
		})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(replies)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reply sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 {
		t.Fatalf("only the configured chat should be served, handled %+v", handled)
	}
	if replies[0].ChatID != "42" || replies[0].Text != "got /customer C1" {
		t.Errorf("unexpected reply %+v", replies[0])
	}
}
