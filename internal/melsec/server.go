package melsec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/fieldsim/internal/capture"
	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/logging"
	"github.com/tturner/fieldsim/internal/memory"
)

const defaultReadTimeout = 10 * time.Second

// Server is the Mitsubishi MC 3E simulator: one TCP listener, one worker
// goroutine per accepted connection, one memory store. Connections are
// long-lived and close only on idle timeout, peer close, or a stream
// that cannot be reframed.
type Server struct {
	cfg         config.MelsecConfig
	logger      *logging.Logger
	store       *memory.Store
	handler     *Handler
	listener    *net.TCPListener
	cap         *capture.Capture
	readTimeout time.Duration

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates an MC server and its backing memory store from the
// configured device map. MC words are little-endian on the wire and in
// bit addressing.
func NewServer(cfg config.MelsecConfig, logger *logging.Logger) (*Server, error) {
	devices, defs, err := NewDeviceMap(cfg.Devices)
	if err != nil {
		return nil, fmt.Errorf("resolve device map: %w", err)
	}
	store, err := memory.NewStore(binary.LittleEndian, defs)
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}

	readTimeout := defaultReadTimeout
	if cfg.ReadTimeoutMs > 0 {
		readTimeout = time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		handler:     NewHandler(store, devices),
		readTimeout: readTimeout,
		conns:       make(map[net.Conn]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Store returns the server's memory store, shared with the process
// simulator and tests.
func (s *Server) Store() *memory.Store {
	return s.store
}

// SetCapture enables exchange capture. Must be called before Start.
func (s *Server) SetCapture(c *capture.Capture) {
	s.cap = c
}

// Start binds the TCP listener and starts accepting. Bind failure is
// the only fatal error.
func (s *Server) Start() error {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", s.cfg.ListenIP, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}
	s.listener, err = net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	s.logger.Info("MC server listening on %s", s.listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound TCP address after Start.
func (s *Server) Addr() *net.TCPAddr {
	if s.listener == nil {
		return nil
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Stop closes the listener and every open connection, then waits for
// all workers to exit.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	s.logger.Info("MC server stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("MC accept error: %v", err)
			continue
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Info("MC connection from %s", remote)

	buffer := make([]byte, 0, 8192)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		n, err := conn.Read(readBuf)
		if err != nil {
			if err == io.EOF {
				s.logger.Info("MC connection closed by %s", remote)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.logger.Info("MC connection %s idle, closing", remote)
				return
			}
			if s.ctx.Err() == nil {
				s.logger.Error("MC read error from %s: %v", remote, err)
			}
			return
		}
		buffer = append(buffer, readBuf[:n]...)

		for {
			frame, rest, err := CutFrame(buffer)
			if err != nil {
				// Stream cannot be reframed; drop the connection.
				s.logger.Error("MC %s: %v", remote, err)
				return
			}
			if frame == nil {
				break
			}
			buffer = rest
			if !s.handleFrame(conn, remote, frame) {
				return
			}
		}
	}
}

// handleFrame answers one complete frame; it returns false when the
// response cannot be written and the connection should close.
func (s *Server) handleFrame(conn *net.TCPConn, remote string, frame []byte) bool {
	s.logger.LogHex("MC <- "+remote, frame)
	s.recordExchange(conn.RemoteAddr(), conn.LocalAddr(), frame)

	var resp []byte
	req, err := DecodeRequest(frame)
	if err != nil {
		s.logger.Info("MC %s: %v", remote, err)
		resp = EncodeResponse(DecodeRouting(frame), EndCommand, nil)
	} else {
		end, payload := s.handler.Handle(req)
		resp = EncodeResponse(req, end, payload)
		s.logger.LogExchange("MC", remote,
			fmt.Sprintf("command 0x%04X device 0x%02X addr %d", req.Command, req.DeviceCode, req.Address),
			end, int(req.Points))
	}

	if _, err := conn.Write(resp); err != nil {
		s.logger.Error("MC write error to %s: %v", remote, err)
		return false
	}
	s.logger.LogHex("MC -> "+remote, resp)
	s.recordExchange(conn.LocalAddr(), conn.RemoteAddr(), resp)
	return true
}

func (s *Server) recordExchange(src, dst net.Addr, payload []byte) {
	if s.cap == nil {
		return
	}
	if err := s.cap.RecordTCP(src, dst, payload); err != nil {
		s.logger.Debug("MC capture: %v", err)
	}
}
