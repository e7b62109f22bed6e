// Package lasproto implements the LAS (lab-automation) binary framed
// protocol: framing, checksum, timestamp encoding, sequence-id allocation,
// and message body codecs, plus the per-connection session state machine.
package lasproto

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	stx = 0x02
	etx = 0x03

	// minFrameBytes is the cheap pre-parse length guard the wire format has
	// always used; any well-formed frame (even with an empty body) is
	// longer than this, but a frame shorter than it is rejected before any
	// field decoding is attempted.
	minFrameBytes = 18

	// headerBytes is STX through instrument_id inclusive.
	headerBytes = 1 + 2 + 2 + 2 + 2 + 2 + 8 + 1
	// footerBytes is the checksum's two ASCII hex bytes plus ETX.
	footerBytes = 2 + 1
)

// MessageType is a LAS message type code.
type MessageType uint16

const (
	MsgACK                          MessageType = 0x0000
	MsgHandshake                    MessageType = 0x0001
	MsgInstrumentHealthRequest      MessageType = 0x0201
	MsgInstrumentHealthResponse     MessageType = 0x0202
	MsgTestInventoryRequest         MessageType = 0x0203
	MsgTestInventoryResponse        MessageType = 0x0204
	MsgOnboardSampleInfoRequest     MessageType = 0x0207
	MsgOnboardSampleInfoResponse    MessageType = 0x0208
	MsgConsumableInventoryRequest   MessageType = 0x020B
	MsgConsumableInventoryResponse  MessageType = 0x020C
	MsgInitializationComplete       MessageType = 0x020D
)

// ACK/NACK return codes, carried as the one-byte ACK body.
const (
	AckOK               byte = 0x00
	AckNotUnderstood    byte = 0x01
	AckTypeNotSupported byte = 0x03
)

// epoch is the LAS timestamp's zero point: 2000-01-01 00:00:00 local time.
// This is a compatibility quirk of the modeled instrument and must not be
// "corrected" to a date-component encoding.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.Local)

// EncodeTimestamp returns the 8-byte big-endian seconds-since-epoch field.
func EncodeTimestamp(t time.Time) [8]byte {
	var buf [8]byte
	delta := uint64(t.Sub(epoch).Seconds())
	binary.BigEndian.PutUint64(buf[:], delta)
	return buf
}

// DecodeTimestamp inverts EncodeTimestamp.
func DecodeTimestamp(b []byte) time.Time {
	delta := binary.BigEndian.Uint64(b)
	return epoch.Add(time.Duration(delta) * time.Second)
}

// Frame is a decoded LAS message.
type Frame struct {
	SequenceID       uint16
	ReturnSequenceID uint16
	MessageType      MessageType
	Timestamp        time.Time
	InstrumentID     uint8
	Body             []byte
}

// checksum computes the two-uppercase-hex-ASCII-byte checksum over data,
// which must span everything after STX up to (not including) the
// checksum field.
func checksum(data []byte) [2]byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	hex := fmt.Sprintf("%02X", sum)
	return [2]byte{hex[0], hex[1]}
}

// ExtractFrame scans buf for one complete STX..ETX span. It returns the
// span (inclusive), the number of leading bytes to discard from buf
// (everything up to and including the consumed frame), and whether a
// complete frame was found. Bytes before a matched STX are always
// discarded. When the declared message_length covers at least a header and
// footer, the frame is that many bytes and must end in ETX, so 0x03 bytes
// inside the header or body do not end it early; a frame whose declared
// length is not yet fully buffered is waited for. Otherwise the span runs
// to the next ETX.
func ExtractFrame(buf []byte) (frame []byte, consumed int, ok bool) {
	stxPos := -1
	for i, b := range buf {
		if b == stx {
			stxPos = i
			break
		}
	}
	if stxPos == -1 {
		return nil, len(buf), false
	}
	if len(buf)-stxPos < 3 {
		return nil, stxPos, false
	}
	declared := int(binary.BigEndian.Uint16(buf[stxPos+1 : stxPos+3]))
	if declared >= headerBytes+footerBytes {
		end := stxPos + declared
		if end > len(buf) {
			return nil, stxPos, false
		}
		if buf[end-1] == etx {
			return buf[stxPos:end], end, true
		}
	}
	etxPos := -1
	for i := stxPos + 1; i < len(buf); i++ {
		if buf[i] == etx {
			etxPos = i
			break
		}
	}
	if etxPos == -1 {
		return nil, stxPos, false
	}
	return buf[stxPos : etxPos+1], etxPos + 1, true
}

// Parse decodes one complete STX..ETX frame. It reports an error for any
// frame too short to contain a header and footer, a declared length that
// does not match the frame's actual length, or a checksum mismatch — all
// of which the session treats as "malformed" and answers with NACK 0x01.
func Parse(raw []byte) (Frame, error) {
	if len(raw) < minFrameBytes || len(raw) < headerBytes+footerBytes {
		return Frame{}, fmt.Errorf("lasproto: frame too short (%d bytes)", len(raw))
	}

	msgLen := binary.BigEndian.Uint16(raw[1:3])
	if int(msgLen) != len(raw) {
		return Frame{}, fmt.Errorf("lasproto: length mismatch: header says %d, got %d", msgLen, len(raw))
	}

	bodyEnd := len(raw) - footerBytes
	if bodyEnd < headerBytes {
		return Frame{}, fmt.Errorf("lasproto: frame too short for declared header")
	}

	wantChecksum := checksum(raw[1:bodyEnd])
	gotChecksum := [2]byte{raw[bodyEnd], raw[bodyEnd+1]}
	if wantChecksum != gotChecksum {
		return Frame{}, fmt.Errorf("lasproto: checksum mismatch")
	}

	f := Frame{
		SequenceID:       binary.BigEndian.Uint16(raw[3:5]),
		ReturnSequenceID: binary.BigEndian.Uint16(raw[5:7]),
		MessageType:      MessageType(binary.BigEndian.Uint16(raw[7:9])),
		Timestamp:        DecodeTimestamp(raw[11:19]),
		InstrumentID:     raw[19],
		Body:             append([]byte(nil), raw[headerBytes:bodyEnd]...),
	}
	return f, nil
}

// Build encodes a frame with a freshly allocated sequence id, returning the
// wire bytes and the id that was allocated.
func Build(seq *SequenceCounter, msgType MessageType, returnSeqID uint16, instrumentID uint8, body []byte) ([]byte, uint16) {
	seqID := seq.Next()
	return BuildWithSequence(seqID, msgType, returnSeqID, instrumentID, body), seqID
}

// BuildWithSequence encodes a frame using an explicit sequence id, for
// round-trip tests that need to hold the id fixed.
func BuildWithSequence(seqID uint16, msgType MessageType, returnSeqID uint16, instrumentID uint8, body []byte) []byte {
	msgLen := headerBytes + len(body) + footerBytes
	out := make([]byte, 0, msgLen)

	out = append(out, stx)
	out = appendU16(out, uint16(msgLen))
	out = appendU16(out, seqID)
	out = appendU16(out, returnSeqID)
	out = appendU16(out, uint16(msgType))
	out = appendU16(out, 0x0000) // reserved
	ts := EncodeTimestamp(time.Now())
	out = append(out, ts[:]...)
	out = append(out, instrumentID)
	out = append(out, body...)

	sum := checksum(out[1:])
	out = append(out, sum[:]...)
	out = append(out, etx)

	return out
}

func appendU16(out []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}
