package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"grid_trader/internal/core"
	"grid_trader/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(ctx context.Context, payload Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return c.err
}

func (c *recordingChannel) kinds() []Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Kind, 0, len(c.payloads))
	for _, p := range c.payloads {
		out = append(out, p.Kind)
	}
	return out
}

func TestManagerDispatch(t *testing.T) {
	m := NewManager(logging.NewNop())
	ch := &recordingChannel{}
	m.AddChannel(ch)

	m.Info("hello")
	m.Error("broken")
	m.Trade(core.Buy, "bought")
	m.Trade(core.Sell, "sold")
	m.Close()

	assert.ElementsMatch(t, []Kind{KindInfo, KindError, KindBuy, KindSell}, ch.kinds())
}

func TestManagerSurvivesChannelFailure(t *testing.T) {
	m := NewManager(logging.NewNop())
	m.AddChannel(&recordingChannel{err: errors.New("webhook down")})

	// Must not panic or propagate.
	m.Info("hello")
	m.Close()
}

func TestManagerNoChannels(t *testing.T) {
	m := NewManager(logging.NewNop())
	m.Info("into the void")
	m.Close()
}

func TestDiscordChannelRouting(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := NewDiscordChannel(DiscordWebhooks{
		Info:  server.URL + "/info",
		Error: server.URL + "/error",
	})

	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, Payload{Kind: KindError, Message: "x", Timestamp: time.Now()}))
	// Buy has no webhook configured and falls back to info.
	require.NoError(t, ch.Send(ctx, Payload{Kind: KindBuy, Message: "y", Timestamp: time.Now()}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/error"])
	assert.Equal(t, 1, hits["/info"])
}

func TestDiscordChannelNoWebhooks(t *testing.T) {
	ch := NewDiscordChannel(DiscordWebhooks{})
	assert.NoError(t, ch.Send(context.Background(), Payload{Kind: KindInfo, Message: "x"}))
}

func TestSlackChannelStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL)
	assert.Error(t, ch.Send(context.Background(), Payload{Kind: KindInfo, Message: "x"}))
}

func TestTelegramChannelDisabled(t *testing.T) {
	ch := NewTelegramChannel("", "")
	assert.NoError(t, ch.Send(context.Background(), Payload{Kind: KindInfo, Message: "x"}))
}
