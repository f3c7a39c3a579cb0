package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"TrendScreener/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(url string) *TelegramNotifier {
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = url
	tn.Log = logger.Discard()
	tn.backoff = time.Millisecond
	return tn
}

func TestFormatRunReport(t *testing.T) {
	msg := FormatRunReport(RunReport{
		RunID: "abc", AsOf: "2024-03-05", Total: 3,
		Uptrends: []string{"TCS.NS", "A&B"}, Errors: []string{"GONE.NS"},
		Duration: 1500 * time.Millisecond,
	})
	assert.Contains(t, msg, "2024-03-05")
	assert.Contains(t, msg, "Instruments: 3 (fresh scan, 1.5s)")
	assert.Contains(t, msg, "Uptrend: <b>2</b> | Errors: 1")
	assert.Contains(t, msg, "TCS.NS, A&amp;B")
	assert.Contains(t, msg, "GONE.NS")
	assert.Contains(t, msg, "run abc")
}

func TestFormatUptrendList_Truncates(t *testing.T) {
	syms := make([]string, maxListed+5)
	for i := range syms {
		syms[i] = fmt.Sprintf("S%d", i)
	}
	msg := FormatUptrendList("2024-03-05", syms)
	assert.Contains(t, msg, "and 5 more")
	assert.NotContains(t, msg, fmt.Sprintf("S%d,", maxListed))

	assert.Contains(t, FormatUptrendList("2024-03-05", nil), "none")
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestSendWithRetry_Disabled(t *testing.T) {
	tn := newTestNotifier("http://127.0.0.1:1")
	tn.BotToken = ""
	assert.NoError(t, tn.SendWithRetry(context.Background(), "x", 3))
}

func TestStartPolling(t *testing.T) {
	var polls int32
	replies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if atomic.AddInt32(&polls, 1) == 1 {
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /uptrend "}}]}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("offset"))
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			replies <- body["text"]
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestNotifier(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
			return "got " + cmd
		})
		close(done)
	}()

	select {
	case reply := <-replies:
		assert.Equal(t, "got /uptrend", reply)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
}
