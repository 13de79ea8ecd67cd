package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/embedding"
	"github.com/kozaktomas/smart-attendance/internal/errors"
)

const wsWriteTimeout = 10 * time.Second

// Client messages on the session websocket. Binary messages are camera frames.
const (
	wsEventMark         = "mark"
	wsEventCameraError  = "camera_error"
	wsEventSwitchCamera = "switch_camera"
)

// WSMessage is a JSON text message sent by the client.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newUpgrader(allowOrigin func(origin string) bool) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if allowOrigin != nil {
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowOrigin(origin)
		}
	}
	return u
}

// WebSocket carries a whole session over one connection: frames and manual marks in,
// session events out.
func (h *SessionsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "session", a.ID, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(constants.MaxUploadSize)

	eventCh := a.AddListener()
	replies := make(chan SessionEvent, constants.EventChannelBuffer)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeEvents(conn, a, eventCh, replies, done)
	}()

	h.readMessages(r.Context(), conn, a, replies)
	close(done)
	wg.Wait()
	a.RemoveListener(eventCh)
}

func writeEvents(conn *websocket.Conn, a *AttendanceSession, eventCh <-chan SessionEvent,
	replies <-chan SessionEvent, done <-chan struct{}) {
	write := func(ev SessionEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			return false
		}
		return true
	}

	if !write(SessionEvent{Type: "status", Data: a.View()}) {
		return
	}
	for {
		select {
		case <-done:
			return
		case ev := <-replies:
			if !write(ev) {
				return
			}
		case ev, ok := <-eventCh:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
					time.Now().Add(wsWriteTimeout))
				conn.Close()
				return
			}
			if !write(ev) {
				return
			}
		}
	}
}

func (h *SessionsHandler) readMessages(ctx context.Context, conn *websocket.Conn, a *AttendanceSession,
	replies chan<- SessionEvent) {
	reply := func(err error) {
		ev := SessionEvent{Type: "error", Message: err.Error()}
		if statusForError(err) == http.StatusInternalServerError {
			logger.Error("websocket request failed", "session", a.ID, "error", err)
			ev.Message = "internal error"
		}
		select {
		case replies <- ev:
		default:
		}
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket closed", "session", a.ID, "error", err)
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if !embedding.IsImage(data) {
				reply(errors.Inputf("push frame", "frame is not an image"))
				continue
			}
			if _, err := h.manager.PushFrame(ctx, a, data, embedding.DetectMIMEType(data)); err != nil {
				reply(err)
			}
		case websocket.TextMessage:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				reply(errors.Input("websocket message", err))
				continue
			}
			if err := h.handleMessage(ctx, a, msg); err != nil {
				reply(err)
			}
		}
	}
}

func (h *SessionsHandler) handleMessage(ctx context.Context, a *AttendanceSession, msg WSMessage) error {
	switch msg.Event {
	case wsEventMark:
		var req MarkRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errors.Input("mark", err)
		}
		_, err := a.markManual(req.StudentID, req.Status)
		return err
	case wsEventCameraError:
		var req CameraErrorRequest
		_ = json.Unmarshal(msg.Data, &req)
		if req.Reason == "" {
			req.Reason = "permission denied"
		}
		h.manager.CameraFailed(ctx, a, req.Reason)
		return nil
	case wsEventSwitchCamera:
		return h.manager.SwitchCamera(ctx, a)
	default:
		return errors.Inputf("websocket message", "unknown event %q", msg.Event)
	}
}
