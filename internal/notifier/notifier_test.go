package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/observer"
)

const testToken = "123456:SECRET"

type fakeBot struct {
	mu       sync.Mutex
	sent     []string
	failures int32
	updates  string
	polled   atomic.Int32
}

func (f *fakeBot) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + testToken + "/sendMessage":
			if atomic.AddInt32(&f.failures, -1) >= 0 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "42", body["chat_id"])
			assert.Equal(t, "HTML", body["parse_mode"])
			f.mu.Lock()
			f.sent = append(f.sent, body["text"])
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		case "/bot" + testToken + "/getUpdates":
			if f.polled.Add(1) == 1 {
				w.Write([]byte(f.updates))
				return
			}
			time.Sleep(10 * time.Millisecond)
			w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeBot) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier(testToken, "42", "")
	n.APIBase = srv.URL
	n.retryBase = time.Millisecond
	return n
}

func TestSendWithRetry_RecoversAfterFailures(t *testing.T) {
	bot := &fakeBot{failures: 2}
	n := newTestNotifier(t, bot)

	require.NoError(t, n.SendWithRetry(context.Background(), "hello", 3))
	assert.Equal(t, []string{"hello"}, bot.messages())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n := newTestNotifier(t, bot)

	err := n.SendWithRetry(context.Background(), "hello", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Empty(t, bot.messages())
}

func TestSend_ErrorsNeverContainToken(t *testing.T) {
	n := NewTelegramNotifier(testToken, "42", "")
	n.APIBase = "http://127.0.0.1:1"
	err := n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestSink_FiltersAndDeduplicates(t *testing.T) {
	bot := &fakeBot{}
	sink := NewSink(newTestNotifier(t, bot))
	ctx := context.Background()
	now := time.Now()
	open := []model.Position{{Symbol: "AAPL", Side: model.SideLong, Quantity: 10, EntryPrice: 180}}

	require.NoError(t, sink.Handle(ctx, model.LogEvent(now, "noise")))
	require.NoError(t, sink.Handle(ctx, model.BalanceEvent(now, 100)))
	require.NoError(t, sink.Handle(ctx, model.StatusEvent(now, model.StatusRunning)))
	require.NoError(t, sink.Handle(ctx, model.PositionsEvent(now, nil)))
	require.NoError(t, sink.Handle(ctx, model.PositionsEvent(now, open)))
	require.NoError(t, sink.Handle(ctx, model.PositionsEvent(now, open)))
	require.NoError(t, sink.Handle(ctx, model.PositionsEvent(now, nil)))

	msgs := bot.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "agent started")
	assert.Contains(t, msgs[1], "<b>AAPL</b> long 10.0000 @ 180.00")
	assert.Contains(t, msgs[2], "No open positions")
}

func TestStartPolling_DispatchesOwnChatOnly(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},
		{"update_id":8,"message":{"text":"/stop","chat":{"id":99}}}
	]}`}
	n := newTestNotifier(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []string
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.StartPolling(ctx, func(cmd string) string {
			mu.Lock()
			got = append(got, cmd)
			mu.Unlock()
			return "reply to " + cmd
		})
	}()

	require.Eventually(t, func() bool { return len(bot.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/status"}, got)
	assert.Equal(t, "reply to /status", bot.messages()[0])
}

func TestFormatters(t *testing.T) {
	now := time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC)
	state := observer.State{
		Status:  model.StatusRunning,
		Balance: 10500,
		Positions: []model.Position{
			{Symbol: "AAPL", Side: model.SideLong, Quantity: 2, EntryPrice: 100, UnrealizedPL: model.KnownAmount(12.5)},
			{Symbol: "TSLA", Side: model.SideShort, Quantity: 1, EntryPrice: 200},
		},
		Logs:      []observer.LogLine{{Time: now, Text: "cycle <done>"}},
		UpdatedAt: now,
	}

	status := FormatStatus(state)
	assert.Contains(t, status, "Agent Running")
	assert.Contains(t, status, "Open positions: 2")
	assert.Contains(t, status, "cycle &lt;done&gt;")

	summary := FormatDailySummary(state, now)
	assert.Contains(t, summary, "2024-06-03")
	assert.Contains(t, summary, "Unrealized P/L: +12.50 (1 unknown)")
	assert.True(t, strings.Contains(summary, "P/L unknown"))

	assert.Contains(t, FormatStatusChange(model.StatusStopped), "stopped")
}
