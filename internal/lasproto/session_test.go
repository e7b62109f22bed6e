package lasproto

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim/atellica-sim/internal/simstate"
)

type fakeStore struct {
	health simstate.HealthSnapshot
}

func (f *fakeStore) GetHealth() simstate.HealthSnapshot { return f.health }
func (f *fakeStore) GetTestInventory() (int, []simstate.TestInventoryItem) {
	return 10, nil
}
func (f *fakeStore) ListOnboardSamples() []simstate.Sample    { return nil }
func (f *fakeStore) GetConsumableInventory() []simstate.Module { return nil }

func readFrame(t *testing.T, conn net.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	f, err := Parse(buf[:n])
	require.NoError(t, err)
	return f
}

func TestSessionHandshakeSequence(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	store := &fakeStore{health: simstate.HealthSnapshot{
		AutomationInterfaceStatus: 1, InstrumentProcessStatus: 1, LISConnectionStatus: 1,
		RemoteControlStatus: []uint8{4, 5}, LockOwnership: []uint8{2, 2},
	}}
	cfg := HandshakeConfig{
		ProtocolVersion: 0x0330, InstrumentType: 0x0001, CapabilityVersion: 0x0104,
		SoftwareVersion: 0x0100, InstrumentID: 0xFF, InstrumentSerial: "ATELLICA",
	}
	sess := NewSession(serverConn, NewSequenceCounter(), store, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sess.Serve(ctx)
		close(done)
	}()

	handshakeBody := EncodeHandshakeBody(HandshakeBody{
		ProtocolVersion: 0x0330, InstrumentType: 0x0001, CapabilityVersion: 0x0104,
		SoftwareVersion: 0x0100, InstrumentID: 0xFF, Serial: "ATELLICA",
	})
	reqSeq := uint16(11)
	req := BuildWithSequence(reqSeq, MsgHandshake, 0, 0xFF, handshakeBody)
	go func() {
		_, _ = clientConn.Write(req)
	}()

	ack := readFrame(t, clientConn)
	assert.Equal(t, MsgACK, ack.MessageType)
	assert.Equal(t, reqSeq, ack.ReturnSequenceID)
	assert.Equal(t, AckOK, ack.Body[0])

	reply := readFrame(t, clientConn)
	assert.Equal(t, MsgHandshake, reply.MessageType)
	assert.Equal(t, reqSeq, reply.ReturnSequenceID)
	decoded, err := DecodeHandshakeBody(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, "ATELLICA", decoded.Serial)

	initComplete := readFrame(t, clientConn)
	assert.Equal(t, MsgInitializationComplete, initComplete.MessageType)
	assert.Equal(t, uint16(0), initComplete.ReturnSequenceID)

	clientConn.Close()
	<-done
}

func TestSessionUnknownTypeSendsNack(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	store := &fakeStore{}
	cfg := HandshakeConfig{InstrumentID: 0xFF, InstrumentSerial: "ATELLICA"}
	sess := NewSession(serverConn, NewSequenceCounter(), store, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sess.Serve(ctx)
		close(done)
	}()

	req := BuildWithSequence(5, MessageType(0x0999), 0, 0xFF, nil)
	go func() {
		_, _ = clientConn.Write(req)
	}()

	nack := readFrame(t, clientConn)
	assert.Equal(t, MsgACK, nack.MessageType)
	assert.Equal(t, AckTypeNotSupported, nack.Body[0])

	clientConn.Close()
	<-done
}

func TestSessionMalformedFrameSendsNack(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	store := &fakeStore{}
	cfg := HandshakeConfig{InstrumentID: 0xFF}
	sess := NewSession(serverConn, NewSequenceCounter(), store, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sess.Serve(ctx)
		close(done)
	}()

	good := BuildWithSequence(9, MsgACK, 0, 0xFF, []byte{AckOK})
	mutated := append([]byte(nil), good...)
	mutated[headerBytes] ^= 0xFF // corrupt body so checksum fails
	go func() {
		_, _ = clientConn.Write(mutated)
	}()

	nack := readFrame(t, clientConn)
	assert.Equal(t, MsgACK, nack.MessageType)
	assert.Equal(t, AckNotUnderstood, nack.Body[0])

	clientConn.Close()
	<-done
}
