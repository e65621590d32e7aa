package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
)

// wsMessage is sent by clients to change what they receive.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "health" | "maps"
	Session string `json:"session"` // maps only; "" = every session
}

func wsSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "health":
		return natsadapter.SubjectHealthSnapshot, true
	case "maps":
		if m.Session != "" {
			return natsadapter.SelectionSubject(m.Session), true
		}
		return natsadapter.SubjectMapAll, true
	}
	return "", false
}

// WebSocketHandler relays health snapshots and selection changes from NATS
// to connected dashboards. New clients receive health snapshots until they
// unsubscribe. Clients send e.g. {"action":"subscribe","channel":"maps","session":"<id>"}.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Info("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(struct {
				Subject string          `json:"subject"`
				Data    json.RawMessage `json:"data"`
			}{msg.Subject, msg.Data})
		}

		subs := make(map[string]*nats.Subscription)
		defer func() {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			logger.Info("ws client disconnected", "subscriptions", len(subs))
		}()

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "realtime bus unavailable"})
			return
		}

		sub, err := nc.Subscribe(natsadapter.SubjectHealthSnapshot, relay)
		if err != nil {
			logger.Error("ws default subscribe", "error", err)
			return
		}
		subs[natsadapter.SubjectHealthSnapshot] = sub

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			subject, ok := wsSubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, exists := subs[subject]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, subject)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}
	}
}
