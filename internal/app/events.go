package app

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alokdon2/CollabCanvas-sub000/internal/session"
)

const (
	eventBuffer  = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// eventMessage is one frame of the view event stream.
type eventMessage struct {
	Event  session.Event   `json:"event"`
	Status session.Status  `json:"status"`
	Active session.Content `json:"active"`
}

func (s *HTTPServer) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || s.corsOrigin == "*" {
				return true
			}
			for _, allowed := range strings.Split(s.corsOrigin, ",") {
				if strings.TrimSpace(allowed) == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleEvents streams the view's controller events until the client goes
// away or the view is closed. The first frame carries the current state.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	view, ok := s.withView(w, r)
	if !ok {
		return
	}
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("app: upgrade events for view %s: %v", view.ID, err)
		return
	}
	defer conn.Close()

	send := make(chan eventMessage, eventBuffer)
	var closeOnce sync.Once
	done := make(chan struct{})
	stop := func() { closeOnce.Do(func() { close(done) }) }

	ctrl := view.Controller
	unsubscribe := ctrl.Subscribe(func(event session.Event) {
		msg := eventMessage{Event: event, Status: ctrl.Status(), Active: ctrl.Active()}
		select {
		case <-done:
		case send <- msg:
		default:
			log.Printf("app: event stream for view %s is full, dropping %s", view.ID, event.Kind)
		}
	})
	defer unsubscribe()
	send <- eventMessage{
		Event:  session.Event{Kind: session.EventLoaded, ProjectID: ctrl.ProjectID()},
		Status: ctrl.Status(),
		Active: ctrl.Active(),
	}

	// The reader only notices the client closing the socket.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Event.Kind == session.EventClosed {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "view closed"),
					time.Now().Add(writeTimeout))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
