package net

import (
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Server accepts TCP connections and starts a Session for each. Admission
// is delegated to the Gateway.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	gateway  Gateway
	cfg      SessionConfig
	metrics  Metrics
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[uint64]*Session
	closeCh  chan struct{}
	closed   sync.Once
}

func NewServer(bindAddr string, cfg SessionConfig, gw Gateway, metrics Metrics, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return newServer(ln, cfg, gw, metrics, log), nil
}

func newServer(ln net.Listener, cfg SessionConfig, gw Gateway, metrics Metrics, log *zap.Logger) *Server {
	return &Server{
		listener: ln,
		gateway:  gw,
		cfg:      cfg,
		metrics:  metrics,
		log:      log,
		sessions: make(map[uint64]*Session),
		closeCh:  make(chan struct{}),
	}
}

// AcceptLoop accepts connections until Shutdown. It returns nil after a
// shutdown and the accept error otherwise.
func (s *Server) AcceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.log.Warn("accept timeout", zap.Error(err))
				continue
			}
			return err
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.cfg, s.metrics, s.log)
		s.track(sess)
		s.log.Debug("connection accepted", zap.Uint64("session", id), zap.String("ip", sess.IP))
		sess.Start(s.gateway)
	}
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	go func() {
		<-sess.Done()
		s.mu.Lock()
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
	}()
}

// SessionCount returns the number of open connections.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting, closes every session and waits for their
// Logout callbacks to finish.
func (s *Server) Shutdown() {
	s.closed.Do(func() {
		close(s.closeCh)
		s.listener.Close()
	})
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		sess.Close()
		<-sess.Done()
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
