package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/testkube/suiterunner/internal/registry"
	"github.com/testkube/suiterunner/internal/suite"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream message types.
const (
	MessageStatus  = "status"
	MessageResult  = "result"
	MessageSummary = "summary"
	MessageError   = "error"
)

type StreamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusEvent struct {
	TestID   string         `json:"testId"`
	Category suite.Category `json:"category"`
	Status   suite.Status   `json:"status"`
}

// statusRelay forwards status transitions to the registry and, while a
// stream owns the current run, to that stream.
type statusRelay struct {
	next *registry.Registry

	mu       sync.Mutex
	listener func(StatusEvent)
}

func (r *statusRelay) SetStatus(category suite.Category, id string, status suite.Status) {
	r.next.SetStatus(category, id, status)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		r.listener(StatusEvent{TestID: id, Category: category, Status: status})
	}
}

func (r *statusRelay) attach(fn func(StatusEvent)) (detach func()) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.listener = nil
		r.mu.Unlock()
	}
}

// streamConn serializes writes to a websocket connection.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(msgType string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(StreamMessage{Type: msgType, Payload: payload}); err != nil {
		log.Printf("Server: stream write failed: %v", err)
	}
}

// handleRunStream starts a run and streams status transitions, results and
// the final summary over a websocket. The connection is closed once the
// summary has been sent.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	stream := &streamConn{conn: conn}

	resp, err := s.runSuite(r.Context(),
		func(ev StatusEvent) {
			stream.send(MessageStatus, ev)
		},
		func(res suite.TestResult) {
			stream.send(MessageResult, res)
		})
	if err != nil {
		stream.send(MessageError, map[string]string{"error": err.Error()})
		return
	}
	stream.send(MessageSummary, resp.Summary)

	stream.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"),
		time.Now().Add(writeWait))
	stream.mu.Unlock()
}
