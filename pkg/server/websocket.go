package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream sends the project's messages, then every new one as it is
// stored. Clients may send {"value": "..."} to post a follow-up prompt.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	// Verify the project exists.
	if _, err := s.projects.GetProject(r.Context(), projectID); err != nil {
		s.storeError(w, err)
		return
	}

	// Subscribe before the initial sync so no message falls in between.
	updates, unsubscribe := s.messages.Subscribe()
	defer unsubscribe()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	var writeMu sync.Mutex
	sent := make(map[string]bool)
	push := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return s.syncMessages(ws, projectID, sent)
	}

	if err := push(); err != nil {
		slog.Error("Failed initial message sync", "error", err)
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes new messages to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case id, ok := <-updates:
				if !ok {
					return
				}
				if id != projectID {
					continue
				}
				if err := push(); err != nil {
					slog.Error("Failed message sync", "error", err)
					return
				}
			case <-ticker.C:
				writeMu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: receives follow-up prompts.
	for {
		var req valueRequest
		if err := ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket read ended", "error", err)
			}
			break
		}
		if req.Value == "" {
			continue
		}
		if _, err := s.post(r, projectID, req.Value); err != nil {
			slog.Error("Failed to post message", "projectID", projectID, "error", err)
		}
	}

	close(done)
	wg.Wait()
}

func (s *Server) syncMessages(ws *websocket.Conn, projectID string, sent map[string]bool) error {
	msgs, err := s.messages.ListMessages(context.Background(), projectID)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		if sent[m.ID] {
			continue
		}
		if err := ws.WriteJSON(m); err != nil {
			return err
		}
		sent[m.ID] = true
	}
	return nil
}
