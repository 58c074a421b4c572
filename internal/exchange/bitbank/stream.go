package bitbank

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"grid_trader/internal/core"
	ws "grid_trader/pkg/websocket"
)

const defaultStreamURL = "wss://stream.bitbank.cc/socket.io/?EIO=4&transport=websocket"

// streamFreshness bounds how old a pushed ticker may be before reads fall
// back to REST.
const streamFreshness = 3 * time.Second

// TickerStream keeps the latest pushed ticker for one pair. bitbank streams
// over socket.io, so the handler speaks the minimal engine.io/socket.io
// framing: reply "40" to the open packet, "3" to ping, and join the ticker
// room once the namespace is connected.
type TickerStream struct {
	pair   string
	client *ws.Client
	logger core.ILogger

	mu        sync.RWMutex
	latest    *core.PriceSnapshot
	updatedAt time.Time
}

// NewTickerStream builds a stream for the given pair. Call Start to connect.
func NewTickerStream(url, pair string, logger core.ILogger) *TickerStream {
	if url == "" {
		url = defaultStreamURL
	}

	s := &TickerStream{
		pair:   pair,
		logger: logger.WithField("component", "bitbank_stream"),
	}
	s.client = ws.NewClient(ws.Config{URL: url}, s.handleMessage, logger)
	return s
}

func (s *TickerStream) Start() { s.client.Start() }
func (s *TickerStream) Stop()  { s.client.Stop() }

// Latest returns the most recent pushed ticker if it is still fresh.
func (s *TickerStream) Latest() (*core.PriceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil || time.Since(s.updatedAt) > streamFreshness {
		return nil, false
	}
	snap := *s.latest
	return &snap, true
}

func (s *TickerStream) handleMessage(message []byte) {
	msg := string(message)
	switch {
	case strings.HasPrefix(msg, "0"):
		// engine.io open packet; connect to the default namespace.
		s.send("40")
	case msg == "2":
		s.send("3")
	case msg == "40" || strings.HasPrefix(msg, "40{"):
		s.send(fmt.Sprintf(`42["join-room","ticker_%s"]`, s.pair))
	case strings.HasPrefix(msg, "42"):
		s.handleEvent([]byte(msg[2:]))
	}
}

func (s *TickerStream) send(payload string) {
	if err := s.client.Send([]byte(payload)); err != nil {
		s.logger.Warn("Stream write failed", "error", err)
	}
}

// streamEvent is the ["message", {room_name, message: {data}}] payload.
type streamEvent struct {
	RoomName string `json:"room_name"`
	Message  struct {
		Data tickerData `json:"data"`
	} `json:"message"`
}

func (s *TickerStream) handleEvent(raw []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
		return
	}

	var event streamEvent
	if err := json.Unmarshal(frame[1], &event); err != nil {
		s.logger.Debug("Unparseable stream event", "error", err)
		return
	}
	if event.RoomName != "ticker_"+s.pair {
		return
	}

	snap := snapshotFromTicker(event.Message.Data)
	s.mu.Lock()
	s.latest = snap
	s.updatedAt = time.Now()
	s.mu.Unlock()
}
