package lasproto

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/labsim/atellica-sim/internal/logging"
	"github.com/labsim/atellica-sim/internal/simstate"
)

// HandshakeConfig carries the configured values the session echoes back in
// its handshake reply.
type HandshakeConfig struct {
	ProtocolVersion   uint16
	InstrumentType    uint16
	CapabilityVersion uint16
	SoftwareVersion   uint16
	InstrumentID      uint8
	InstrumentSerial  string
}

// Store is the subset of simstate.Store the LAS session depends on. It
// never mutates the store — the LAS side is read-only except for the
// handshake/health/inventory query surface.
type Store interface {
	GetHealth() simstate.HealthSnapshot
	GetTestInventory() (threshold int, items []simstate.TestInventoryItem)
	ListOnboardSamples() []simstate.Sample
	GetConsumableInventory() []simstate.Module
}

// Session drives one accepted LAS connection: frame extraction, ACK/NACK
// ordering, and request dispatch. Every inbound frame is answered with
// ACK or NACK before any domain response, per the protocol's ordering
// guarantee.
type Session struct {
	conn   net.Conn
	addr   string
	seq    *SequenceCounter
	store  Store
	cfg    HandshakeConfig
	logger logging.Logger
}

// NewSession builds a Session for an already-accepted connection.
func NewSession(conn net.Conn, seq *SequenceCounter, store Store, cfg HandshakeConfig, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &Session{conn: conn, addr: conn.RemoteAddr().String(), seq: seq, store: store, cfg: cfg, logger: logger}
}

// Serve runs the session's read loop until the peer closes the connection,
// a read error occurs, or ctx is canceled. It always closes conn on exit.
func (s *Session) Serve(ctx context.Context) {
	defer s.conn.Close()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-stopWatch:
		}
	}()

	s.logger.Info("las", "connection_opened", "LAS connection established", map[string]any{"addr": s.addr})
	defer s.logger.Info("las", "connection_closed", "LAS connection closed", map[string]any{"addr": s.addr})

	var buf []byte
	tmp := make([]byte, 4096)
	for {
		n, err := s.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			buf = s.drainFrames(buf)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) drainFrames(buf []byte) []byte {
	for {
		frame, consumed, ok := ExtractFrame(buf)
		if !ok {
			return buf[consumed:]
		}
		s.handleFrame(frame)
		buf = buf[consumed:]
	}
}

func (s *Session) handleFrame(raw []byte) {
	f, err := Parse(raw)
	if err != nil {
		s.sendAck(fallbackSequenceID(raw), AckNotUnderstood)
		s.logger.Warn("las", "malformed_frame", "rejected malformed frame", map[string]any{"addr": s.addr, "error": err.Error()})
		return
	}

	s.logger.Debug("las", "frame_received", "received frame", map[string]any{
		"addr": s.addr, "type": fmt.Sprintf("0x%04X", uint16(f.MessageType)), "seq": f.SequenceID,
	})

	switch f.MessageType {
	case MsgHandshake:
		s.sendAck(f.SequenceID, AckOK)
		s.handleHandshake(f)
	case MsgInstrumentHealthRequest:
		s.sendAck(f.SequenceID, AckOK)
		s.handleHealthRequest(f)
	case MsgTestInventoryRequest:
		s.sendAck(f.SequenceID, AckOK)
		s.handleTestInventoryRequest(f)
	case MsgOnboardSampleInfoRequest:
		s.sendAck(f.SequenceID, AckOK)
		s.handleOnboardSampleInfoRequest(f)
	case MsgConsumableInventoryRequest:
		s.sendAck(f.SequenceID, AckOK)
		s.handleConsumableInventoryRequest(f)
	default:
		s.sendAck(f.SequenceID, AckTypeNotSupported)
		s.logger.Warn("las", "unsupported_type", "unsupported LAS message type", map[string]any{
			"addr": s.addr, "type": fmt.Sprintf("0x%04X", uint16(f.MessageType)),
		})
	}
}

// fallbackSequenceID best-effort recovers a sequence id from a frame too
// malformed to fully parse, so the NACK can still echo it when possible.
func fallbackSequenceID(raw []byte) uint16 {
	if len(raw) >= 5 {
		return binary.BigEndian.Uint16(raw[3:5])
	}
	return 0
}

func (s *Session) sendAck(returnSeq uint16, code byte) {
	msg, seqID := Build(s.seq, MsgACK, returnSeq, s.cfg.InstrumentID, []byte{code})
	if _, err := s.conn.Write(msg); err != nil {
		s.logger.Error("las", "write_error", "failed to send ACK/NACK", map[string]any{"addr": s.addr, "error": err.Error()})
		return
	}
	kind := "ACK"
	if code != AckOK {
		kind = "NACK"
	}
	s.logger.Debug("las", "ack_sent", "sent "+kind, map[string]any{"addr": s.addr, "return_seq": returnSeq, "seq": seqID, "code": code})
}

func (s *Session) handleHandshake(f Frame) {
	if _, err := DecodeHandshakeBody(f.Body); err != nil {
		s.logger.Warn("las", "handshake_decode_error", "could not decode handshake body", map[string]any{"addr": s.addr, "error": err.Error()})
	}

	reply := EncodeHandshakeBody(HandshakeBody{
		ProtocolVersion:   s.cfg.ProtocolVersion,
		InstrumentType:    s.cfg.InstrumentType,
		CapabilityVersion: s.cfg.CapabilityVersion,
		SoftwareVersion:   s.cfg.SoftwareVersion,
		InstrumentID:      s.cfg.InstrumentID,
		Serial:            s.cfg.InstrumentSerial,
	})
	msg, seqID := Build(s.seq, MsgHandshake, f.SequenceID, s.cfg.InstrumentID, reply)
	if _, err := s.conn.Write(msg); err != nil {
		return
	}
	s.logger.Info("las", "handshake_sent", "sent handshake reply", map[string]any{"addr": s.addr, "seq": seqID})

	initMsg, initSeq := Build(s.seq, MsgInitializationComplete, 0, s.cfg.InstrumentID, nil)
	if _, err := s.conn.Write(initMsg); err != nil {
		return
	}
	s.logger.Info("las", "init_complete_sent", "sent initialization complete", map[string]any{"addr": s.addr, "seq": initSeq})
}

func (s *Session) handleHealthRequest(f Frame) {
	health := s.store.GetHealth()
	body := EncodeHealthResponseBody(HealthResponseBody{
		AutomationInterfaceStatus: health.AutomationInterfaceStatus,
		InstrumentProcessStatus:   health.InstrumentProcessStatus,
		LISConnectionStatus:       health.LISConnectionStatus,
		RemoteControlStatus:       health.RemoteControlStatus,
		LockOwnership:             health.LockOwnership,
		ProcessingBacklog:         health.ProcessingBacklog,
		SampleAcquisitionDelay:    health.SampleAcquisitionDelay,
		OnBoardTubeCount:          health.OnBoardTubeCount,
		CompletedTubeCount:        health.CompletedTubeCount,
	})
	msg, seqID := Build(s.seq, MsgInstrumentHealthResponse, f.SequenceID, s.cfg.InstrumentID, body)
	if _, err := s.conn.Write(msg); err != nil {
		return
	}
	s.logger.Info("las", "health_response_sent", "sent instrument health response", map[string]any{"addr": s.addr, "seq": seqID})
}

func (s *Session) handleTestInventoryRequest(f Frame) {
	_, items := s.store.GetTestInventory()
	wire := make([]TestInventoryItemWire, 0, len(items))
	for _, it := range items {
		wire = append(wire, TestInventoryItemWire{Name: it.Name, Count: uint16(it.Count), Status: uint16(it.Status)})
	}
	body := EncodeTestInventoryResponseBody(wire)
	msg, seqID := Build(s.seq, MsgTestInventoryResponse, f.SequenceID, s.cfg.InstrumentID, body)
	if _, err := s.conn.Write(msg); err != nil {
		return
	}
	s.logger.Info("las", "test_inventory_response_sent", "sent test inventory response", map[string]any{"addr": s.addr, "seq": seqID, "count": len(wire)})
}

func (s *Session) handleOnboardSampleInfoRequest(f Frame) {
	samples := s.store.ListOnboardSamples()
	ids := make([]string, 0, len(samples))
	for _, smp := range samples {
		ids = append(ids, smp.ID)
	}
	body := EncodeOnboardSampleInfoResponseBody(ids)
	msg, seqID := Build(s.seq, MsgOnboardSampleInfoResponse, f.SequenceID, s.cfg.InstrumentID, body)
	if _, err := s.conn.Write(msg); err != nil {
		return
	}
	s.logger.Info("las", "onboard_sample_info_response_sent", "sent onboard sample info response", map[string]any{"addr": s.addr, "seq": seqID, "count": len(ids)})
}

func (s *Session) handleConsumableInventoryRequest(f Frame) {
	mods := s.store.GetConsumableInventory()
	wire := make([]ModuleWire, 0, len(mods))
	for _, m := range mods {
		cw := make([]ConsumableWire, 0, len(m.Consumables))
		for _, c := range m.Consumables {
			cw = append(cw, ConsumableWire{ID: c.ID, Status: c.Status})
		}
		wire = append(wire, ModuleWire{ID: m.ID, Consumables: cw})
	}
	body := EncodeConsumableInventoryResponseBody(wire)
	msg, seqID := Build(s.seq, MsgConsumableInventoryResponse, f.SequenceID, s.cfg.InstrumentID, body)
	if _, err := s.conn.Write(msg); err != nil {
		return
	}
	s.logger.Info("las", "consumable_inventory_response_sent", "sent consumable inventory response", map[string]any{"addr": s.addr, "seq": seqID, "modules": len(wire)})
}
