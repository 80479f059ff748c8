// Package snapshot streams scene frames to remote renderers over
// websocket.
//
// Each connected viewer first receives a hello message carrying its
// connection id, then one frame message per Publish. Frames are encoded
// once and fanned out; a viewer that falls behind loses frames instead of
// stalling the simulation.
package snapshot

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/scene"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 4
)

// Source produces frames. *scene.Scene satisfies it.
type Source interface {
	Snapshot() scene.Frame
}

// Message is the envelope of everything the server sends.
type Message struct {
	Frame *scene.Frame `json:"frame,omitempty"`
	Type  string       `json:"type"`
	ID    string       `json:"id,omitempty"`
	Seq   uint64       `json:"seq,omitempty"`
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	id   uuid.UUID
}

// Server is an http.Handler that upgrades requests to frame streams.
type Server struct {
	src      Source
	log      *zap.Logger
	upgrader websocket.Upgrader
	viewers  map[uuid.UUID]*viewer
	seq      atomic.Uint64
	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
}

// New creates a Server publishing frames from src.
func New(src Source, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		src: src,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Viewers are local tools, not browsers on foreign origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		viewers: make(map[uuid.UUID]*viewer),
	}
}

// ServeHTTP upgrades the connection and streams frames until the viewer
// disconnects or the server closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "snapshot server closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	v := &viewer{id: uuid.New(), conn: conn, send: make(chan []byte, sendBuffer)}
	hello, _ := json.Marshal(Message{Type: "hello", ID: v.id.String()})
	v.send <- hello

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.viewers[v.id] = v
	s.wg.Add(1)
	s.mu.Unlock()
	s.log.Info("viewer connected", zap.Stringer("viewer", v.id), zap.String("remote", conn.RemoteAddr().String()))

	go s.write(v)
	s.read(v)
}

// read discards client messages; it returns when the connection breaks.
func (s *Server) read(v *viewer) {
	defer s.drop(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) write(v *viewer) {
	defer s.wg.Done()
	for msg := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Debug("write failed", zap.Stringer("viewer", v.id), zap.Error(err))
			_ = v.conn.Close()
			return
		}
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = v.conn.Close()
}

func (s *Server) drop(v *viewer) {
	s.mu.Lock()
	_, ok := s.viewers[v.id]
	delete(s.viewers, v.id)
	s.mu.Unlock()
	if ok {
		close(v.send)
		s.log.Info("viewer disconnected", zap.Stringer("viewer", v.id))
	}
}

// Publish snapshots the source and queues the frame for every viewer.
// It never blocks on a slow viewer.
func (s *Server) Publish() error {
	s.mu.Lock()
	n := len(s.viewers)
	s.mu.Unlock()
	if n == 0 {
		return nil
	}

	frame := s.src.Snapshot()
	msg, err := json.Marshal(Message{Type: "frame", Seq: s.seq.Add(1), Frame: &frame})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.viewers {
		select {
		case v.send <- msg:
		default:
			s.log.Debug("viewer lagging, frame dropped", zap.Stringer("viewer", v.id))
		}
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Viewers returns the number of connected viewers.
func (s *Server) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Close disconnects every viewer and waits for their writers to finish.
// Later connections are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for id, v := range s.viewers {
		delete(s.viewers, id)
		close(v.send)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ListenAndServe serves the stream at "/" on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: writeWait}
	go func() {
		<-ctx.Done()
		s.Close()
		shutdown, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	s.log.Info("snapshot server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
