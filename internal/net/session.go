package net

import (
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/astraeus/server/internal/net/packet"
	"go.uber.org/zap"
)

// PacketHandler receives the decoded inbound packets of one admitted
// session. Handle runs on the session's read goroutine.
type PacketHandler interface {
	FramingTable
	Handle(pkt *packet.Packet) error
}

// Gateway is the admission layer behind the network. Login must finish the
// world bookkeeping for the new entity before returning; Logout is called
// exactly once for every session Login accepted.
type Gateway interface {
	Login(s *Session, req *LoginRequest) (LoginResponse, int, PacketHandler)
	Logout(s *Session)
}

// SessionConfig holds the per-connection limits.
type SessionConfig struct {
	Revision         int
	OutQueueSize     int
	PacketsPerSecond int // 0 = unlimited
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// Session represents a single client connection. The read goroutine
// decodes and dispatches inbound packets; the write goroutine masks and
// writes queued outbound packets in order.
type Session struct {
	ID   uint64
	IP   string
	conn net.Conn
	cfg  SessionConfig

	cipher  *CipherPair
	decoder *Decoder
	encoder *Encoder
	handler PacketHandler

	OutQueue chan *packet.Packet

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	loggedIn  atomic.Bool
	done      chan struct{}

	// Per-second packet rate limiter (read goroutine only).
	pktCount   int
	pktResetAt int64

	metrics Metrics
	log     *zap.Logger
}

// Metrics receives per-session traffic counts. Implementations must be
// safe for concurrent use.
type Metrics interface {
	PacketIn(opcode int)
	PacketOut(opcode int)
	ProtocolError()
}

type nopMetrics struct{}

func (nopMetrics) PacketIn(int)   {}
func (nopMetrics) PacketOut(int)  {}
func (nopMetrics) ProtocolError() {}

func NewSession(conn net.Conn, id uint64, cfg SessionConfig, metrics Metrics, log *zap.Logger) *Session {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.OutQueueSize <= 0 {
		cfg.OutQueueSize = 256
	}
	return &Session{
		ID:       id,
		IP:       conn.RemoteAddr().String(),
		conn:     conn,
		cfg:      cfg,
		OutQueue: make(chan *packet.Packet, cfg.OutQueueSize),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
		metrics:  metrics,
		log:      log.With(zap.Uint64("session", id)),
	}
}

// Start runs the handshake and, once admitted, the read and write loops.
// It returns immediately; Done is closed when the session has fully ended.
func (s *Session) Start(gw Gateway) {
	go s.run(gw)
}

// Done is closed after the session ended and Logout returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(gw Gateway) {
	defer close(s.done)
	defer s.Close()

	if s.cfg.ReadTimeout > 0 {
		s.conn.SetDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	req, resp, err := readLoginRequest(s.conn, rand.Uint64())
	if err != nil {
		s.log.Debug("handshake failed", zap.Error(err))
		if resp != 0 {
			writeLoginResponse(s.conn, resp, 0)
		}
		return
	}
	if s.cfg.Revision != 0 && req.Revision != s.cfg.Revision {
		s.log.Debug("client revision mismatch", zap.Int("revision", req.Revision))
		writeLoginResponse(s.conn, LoginGameUpdated, 0)
		return
	}

	s.cipher = NewCipherPair(req.Seed)
	s.encoder = NewEncoder(s.cipher.Outbound)

	resp, rights, handler := gw.Login(s, req)
	if resp != LoginOK || handler == nil {
		s.log.Info("login refused", zap.String("user", req.Username), zap.Int("code", int(resp)))
		writeLoginResponse(s.conn, resp, 0)
		return
	}
	s.loggedIn.Store(true)
	defer gw.Logout(s)

	if err := writeLoginResponse(s.conn, LoginOK, rights); err != nil {
		s.log.Debug("write login response", zap.Error(err))
		return
	}
	s.conn.SetDeadline(time.Time{})

	s.handler = handler
	s.decoder = NewDecoder(s.cipher.Inbound, handler)

	go s.writeLoop()
	s.readLoop()
}

// Send queues a packet for the write goroutine. It never blocks: when the
// queue is full the client is too slow and the session is closed.
func (s *Session) Send(p *packet.Packet) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- p:
	default:
		s.log.Warn("out queue full, disconnecting slow client")
		s.Close()
	}
}

// Disconnect closes the session once every packet queued before it has
// been written.
func (s *Session) Disconnect() {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- nil:
	default:
		s.Close()
	}
}

// Close shuts the session down. Safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// LoggedIn reports whether the gateway admitted this session.
func (s *Session) LoggedIn() bool {
	return s.loggedIn.Load()
}

// readLoop reads from the connection, decodes complete packets and hands
// them to the handler. Codec errors end this session only.
func (s *Session) readLoop() {
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		if s.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var ok bool
			if buf, ok = s.drain(buf); !ok {
				return
			}
		}
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}

// drain decodes and dispatches every complete packet in buf and returns
// the unconsumed tail.
func (s *Session) drain(buf []byte) ([]byte, bool) {
	for {
		pkt, used, err := s.decoder.Decode(buf)
		buf = append(buf[:0], buf[used:]...)
		if errors.Is(err, packet.ErrTruncated) {
			return buf, true
		}
		if err != nil {
			s.metrics.ProtocolError()
			s.log.Warn("protocol error, closing session", zap.Error(err))
			return buf, false
		}
		s.metrics.PacketIn(pkt.Opcode)

		if s.cfg.PacketsPerSecond > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.cfg.PacketsPerSecond {
				s.log.Warn("packet rate exceeded, closing session", zap.Int("pps", s.pktCount))
				return buf, false
			}
		}

		if err := s.handler.Handle(pkt); err != nil {
			s.metrics.ProtocolError()
			s.log.Warn("handler error, closing session", zap.Int("opcode", pkt.Opcode), zap.Error(err))
			return buf, false
		}
		if s.closed.Load() {
			return buf, false
		}
	}
}

// writeLoop masks and writes queued packets. Whatever is already queued
// when a packet is taken is batched into the same write.
func (s *Session) writeLoop() {
	defer s.Close()

	out := make([]byte, 0, 4096)
	for {
		select {
		case p := <-s.OutQueue:
			// A nil packet is the Disconnect marker.
			last := p == nil
			out = out[:0]
			var ok bool
			if !last {
				if out, ok = s.encode(out, p); !ok {
					return
				}
			}
		batch:
			for !last {
				select {
				case more := <-s.OutQueue:
					if more == nil {
						last = true
						break batch
					}
					if out, ok = s.encode(out, more); !ok {
						return
					}
				default:
					break batch
				}
			}
			if len(out) > 0 {
				if s.cfg.WriteTimeout > 0 {
					s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				}
				if _, err := s.conn.Write(out); err != nil {
					if !s.closed.Load() {
						s.log.Debug("write error", zap.Error(err))
					}
					return
				}
			}
			if last {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) encode(dst []byte, p *packet.Packet) ([]byte, bool) {
	dst, err := s.encoder.Encode(dst, p)
	if err != nil {
		s.log.Error("encode failed", zap.Int("opcode", p.Opcode), zap.Error(err))
		return dst, false
	}
	s.metrics.PacketOut(p.Opcode)
	return dst, true
}
