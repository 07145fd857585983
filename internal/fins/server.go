package fins

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tturner/fieldsim/internal/capture"
	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/logging"
	"github.com/tturner/fieldsim/internal/memory"
)

// Server is the OMRON FINS simulator: one UDP socket, one memory store,
// stateless request/response per datagram. The socket never closes on
// bad input; malformed datagrams are dropped the way a real FINS node
// drops frames below the minimum size.
type Server struct {
	cfg     config.FINSConfig
	logger  *logging.Logger
	store   *memory.Store
	handler *Handler
	conn    *net.UDPConn
	cap     *capture.Capture
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a FINS server and its backing memory store. FINS
// words are big-endian on the wire and in bit addressing.
func NewServer(cfg config.FINSConfig, logger *logging.Logger) (*Server, error) {
	store, err := memory.NewStore(binary.BigEndian, []memory.AreaDef{
		{Name: AreaCIO, Words: cfg.Areas.CIO},
		{Name: AreaWork, Words: cfg.Areas.Work},
		{Name: AreaHolding, Words: cfg.Areas.Holding},
		{Name: AreaData, Words: cfg.Areas.Data},
	})
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		handler: NewHandler(store),
		ctx:     ctx,
		cancel:  cancel,
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

// Start binds the UDP socket and starts the read loop. Bind failure is
// the only fatal error.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.cfg.ListenIP, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("resolve UDP address: %w", err)
	}
	s.conn, err = net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen UDP: %w", err)
	}

	s.logger.Info("FINS server listening on %s", s.conn.LocalAddr())

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// Addr returns the bound UDP address after Start.
func (s *Server) Addr() *net.UDPAddr {
	if s.conn == nil {
		return nil
	}
	if addr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr
	}
	return nil
}

// Stop closes the socket and waits for the read loop to exit.
func (s *Server) Stop() error {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
	s.logger.Info("FINS server stopped")
	return nil
}

func (s *Server) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("FINS read error: %v", err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	s.logger.LogHex("FINS <- "+addr.String(), data)
	s.recordExchange(addr, s.Addr(), data)

	h, cmd, err := DecodeHeader(data)
	if err != nil {
		// Below the minimum frame size there is nothing to answer.
		s.logger.Debug("FINS %s: dropped: %v", addr, err)
		return
	}

	if cmd != CommandMemoryAreaRead && cmd != CommandMemoryAreaWrite {
		s.respond(addr, h, cmd, EndServiceNotSupported, nil)
		s.logger.LogExchange("FINS", addr.String(), fmt.Sprintf("command 0x%04X", cmd), EndServiceNotSupported, 0)
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		// Truncated command parameters; real nodes stay silent.
		s.logger.Debug("FINS %s: dropped: %v", addr, err)
		return
	}

	end, payload := s.handler.Handle(req)
	s.respond(addr, req.Header, req.Command, end, payload)

	op := "read"
	if req.Command == CommandMemoryAreaWrite {
		op = "write"
	}
	s.logger.LogExchange("FINS", addr.String(),
		fmt.Sprintf("%s area 0x%02X addr %d", op, req.AreaCode, req.Address), end, int(req.Count))
}

func (s *Server) respond(addr *net.UDPAddr, h Header, cmd, end uint16, payload []byte) {
	resp := EncodeResponse(h, cmd, end, payload)
	if _, err := s.conn.WriteToUDP(resp, addr); err != nil {
		s.logger.Error("FINS write error to %s: %v", addr, err)
		return
	}
	s.logger.LogHex("FINS -> "+addr.String(), resp)
	s.recordExchange(s.Addr(), addr, resp)
}

func (s *Server) recordExchange(src, dst *net.UDPAddr, payload []byte) {
	if s.cap == nil || src == nil || dst == nil {
		return
	}
	if err := s.cap.RecordUDP(src, dst, payload); err != nil {
		s.logger.Debug("FINS capture: %v", err)
	}
}
