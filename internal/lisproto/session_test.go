package lisproto

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
	received []struct {
		id    string
		tests []string
	}
	outcome simstate.ReceiveOutcome
}

func (f *fakeStore) ReceiveSample(id string, tests []string, patient *simstate.PatientInfo) simstate.ReceiveOutcome {
	f.received = append(f.received, struct {
		id    string
		tests []string
	}{id, tests})
	return f.outcome
}

func TestSessionAcksOrderIntake(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	store := &fakeStore{outcome: simstate.Accepted}
	sess := NewSession(serverConn, store, NewBroadcaster(nil), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sess.Serve(ctx)
		close(done)
	}()

	msg := "H|LIS|ATELLICA|20240101120000|1|1|1\r" +
		"P|PAT1|Doe^John|19900101|M|||\r" +
		"O|S001|TEST001~TEST003||||||||||||\r" +
		"L|1|1\r"

	go func() {
		_, _ = clientConn.Write([]byte(msg))
	}()

	ack := make([]byte, 1)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(ack)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte(0x06), ack[0])

	require.Len(t, store.received, 1)
	assert.Equal(t, "S001", store.received[0].id)
	assert.Equal(t, []string{"TEST001", "TEST003"}, store.received[0].tests)

	clientConn.Close()
	<-done
}
