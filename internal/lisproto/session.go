package lisproto

import (
	"context"
	"net"

	"github.com/labsim/atellica-sim/internal/logging"
	"github.com/labsim/atellica-sim/internal/simstate"
)

// Store is the subset of simstate.Store the LIS session depends on.
type Store interface {
	ReceiveSample(id string, tests []string, patient *simstate.PatientInfo) simstate.ReceiveOutcome
}

// Session drives one accepted LIS connection: it decodes inbound bytes as
// ASCII with replacement, tokenizes transmissions, feeds each order to the
// state store, and ACKs every consumed transmission. It also registers
// itself with the broadcaster so completed-sample result transmissions
// reach this connection.
type Session struct {
	conn        net.Conn
	addr        string
	store       Store
	broadcaster *Broadcaster
	limiter     *ConnectionLimiter
	logger      logging.Logger
}

// NewSession builds a Session for an already-accepted connection. limiter
// may be nil if the caller enforces the connection cap itself.
func NewSession(conn net.Conn, store Store, broadcaster *Broadcaster, limiter *ConnectionLimiter, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &Session{conn: conn, addr: conn.RemoteAddr().String(), store: store, broadcaster: broadcaster, limiter: limiter, logger: logger}
}

// Serve runs the session's read loop until the peer closes the connection,
// a read error occurs, or ctx is canceled.
func (s *Session) Serve(ctx context.Context) {
	defer s.conn.Close()
	if s.limiter != nil {
		defer s.limiter.Release()
	}

	s.broadcaster.Add(s.conn)
	defer s.broadcaster.Remove(s.conn)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-stopWatch:
		}
	}()

	s.logger.Info("lis", "connection_opened", "LIS connection established", map[string]any{"addr": s.addr})
	defer s.logger.Info("lis", "connection_closed", "LIS connection closed", map[string]any{"addr": s.addr})

	var buf string
	tmp := make([]byte, 4096)
	for {
		n, err := s.conn.Read(tmp)
		if n > 0 {
			buf += decodeASCII(tmp[:n])
			var transmissions [][]string
			transmissions, buf = Tokenize(buf)
			for _, t := range transmissions {
				s.handleTransmission(t)
			}
		}
		if err != nil {
			return
		}
	}
}

// decodeASCII mirrors Python's bytes.decode("ascii", errors="replace"):
// any byte outside the 7-bit ASCII range becomes '?'.
func decodeASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x80 {
			out[i] = c
		} else {
			out[i] = '?'
		}
	}
	return string(out)
}

func (s *Session) handleTransmission(records []string) {
	var patient *simstate.PatientInfo
	var orders []OrderRecord

	for _, rec := range records {
		if rec == "" {
			continue
		}
		fields := splitFields(rec)
		switch rec[0] {
		case 'P':
			p := ParsePatientRecord(fields)
			patient = &simstate.PatientInfo{
				PatientID: p.PatientID,
				LastName:  p.LastName,
				FirstName: p.FirstName,
				DOB:       p.DOB,
				Gender:    p.Gender,
			}
		case 'O':
			orders = append(orders, ParseOrderRecord(fields))
		}
	}

	for _, o := range orders {
		if o.SampleID == "" {
			continue
		}
		outcome := s.store.ReceiveSample(o.SampleID, o.Tests, patient)
		switch outcome {
		case simstate.Accepted:
			s.logger.Info("lis", "sample_received", "sample accepted", map[string]any{"addr": s.addr, "sample_id": o.SampleID, "tests": o.Tests})
		case simstate.RejectedDuplicate:
			s.logger.Warn("lis", "sample_duplicate", "duplicate sample id rejected", map[string]any{"addr": s.addr, "sample_id": o.SampleID})
		case simstate.RejectedNoValidTests:
			s.logger.Warn("lis", "sample_no_valid_tests", "sample rejected, no recognized test codes", map[string]any{"addr": s.addr, "sample_id": o.SampleID})
		}
	}

	s.sendAck()
}

func (s *Session) sendAck() {
	if _, err := s.conn.Write([]byte{0x06}); err != nil {
		s.logger.Error("lis", "write_error", "failed to send ACK", map[string]any{"addr": s.addr, "error": err.Error()})
	}
}
