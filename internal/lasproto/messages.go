package lasproto

import "encoding/binary"

// HandshakeBody is the handshake message's body, used for both the
// client's inbound handshake and the server's reply.
type HandshakeBody struct {
	ProtocolVersion   uint16
	InstrumentType    uint16
	CapabilityVersion uint16
	SoftwareVersion   uint16
	InstrumentID      uint8
	Serial            string
}

// DecodeHandshakeBody parses an inbound handshake body. It reports an
// error if the body is too short for its fixed prefix or for the declared
// serial length.
func DecodeHandshakeBody(body []byte) (HandshakeBody, error) {
	if len(body) < 10 {
		return HandshakeBody{}, errTooShort("handshake body")
	}
	serialLen := int(body[9])
	if len(body) < 10+serialLen {
		return HandshakeBody{}, errTooShort("handshake serial")
	}
	return HandshakeBody{
		ProtocolVersion:   binary.BigEndian.Uint16(body[0:2]),
		InstrumentType:    binary.BigEndian.Uint16(body[2:4]),
		CapabilityVersion: binary.BigEndian.Uint16(body[4:6]),
		SoftwareVersion:   binary.BigEndian.Uint16(body[6:8]),
		InstrumentID:      body[8],
		Serial:            string(body[10 : 10+serialLen]),
	}, nil
}

// EncodeHandshakeBody builds the handshake body bytes.
func EncodeHandshakeBody(h HandshakeBody) []byte {
	serial := []byte(h.Serial)
	out := make([]byte, 0, 10+len(serial))
	out = appendU16(out, h.ProtocolVersion)
	out = appendU16(out, h.InstrumentType)
	out = appendU16(out, h.CapabilityVersion)
	out = appendU16(out, h.SoftwareVersion)
	out = append(out, h.InstrumentID)
	out = append(out, byte(len(serial)))
	out = append(out, serial...)
	return out
}

// HealthResponseBody is the instrument-health response's body.
type HealthResponseBody struct {
	AutomationInterfaceStatus uint8
	InstrumentProcessStatus   uint8
	LISConnectionStatus       uint8
	RemoteControlStatus       []uint8
	LockOwnership             []uint8
	ProcessingBacklog         uint16
	SampleAcquisitionDelay    uint16
	OnBoardTubeCount          uint16
	CompletedTubeCount        uint16
}

// EncodeHealthResponseBody builds the instrument-health response body.
// len(RemoteControlStatus) must equal len(LockOwnership); that length
// becomes the wire interface_positions field. The two arrays are written
// back to back (every remote_control_status byte, then every
// lock_ownership byte), not interleaved per position.
func EncodeHealthResponseBody(h HealthResponseBody) []byte {
	n := len(h.RemoteControlStatus)
	out := make([]byte, 0, 4+2*n+8)
	out = append(out, h.AutomationInterfaceStatus, h.InstrumentProcessStatus, h.LISConnectionStatus, byte(n))
	out = append(out, h.RemoteControlStatus...)
	out = append(out, h.LockOwnership...)
	out = appendU16(out, h.ProcessingBacklog)
	out = appendU16(out, h.SampleAcquisitionDelay)
	out = appendU16(out, h.OnBoardTubeCount)
	out = appendU16(out, h.CompletedTubeCount)
	return out
}

// DecodeHealthResponseBody inverts EncodeHealthResponseBody, for round-trip
// tests.
func DecodeHealthResponseBody(body []byte) (HealthResponseBody, error) {
	if len(body) < 4 {
		return HealthResponseBody{}, errTooShort("health response body")
	}
	n := int(body[3])
	need := 4 + 2*n + 8
	if len(body) < need {
		return HealthResponseBody{}, errTooShort("health response body positions")
	}
	h := HealthResponseBody{
		AutomationInterfaceStatus: body[0],
		InstrumentProcessStatus:   body[1],
		LISConnectionStatus:       body[2],
		RemoteControlStatus:       append([]uint8(nil), body[4:4+n]...),
		LockOwnership:             append([]uint8(nil), body[4+n:4+2*n]...),
	}
	off := 4 + 2*n
	h.ProcessingBacklog = binary.BigEndian.Uint16(body[off : off+2])
	h.SampleAcquisitionDelay = binary.BigEndian.Uint16(body[off+2 : off+4])
	h.OnBoardTubeCount = binary.BigEndian.Uint16(body[off+4 : off+6])
	h.CompletedTubeCount = binary.BigEndian.Uint16(body[off+6 : off+8])
	return h, nil
}

// TestInventoryItemWire is one reagent entry on the wire.
type TestInventoryItemWire struct {
	Name   string
	Count  uint16
	Status uint16
}

// EncodeTestInventoryResponseBody builds the test-inventory response body.
func EncodeTestInventoryResponseBody(items []TestInventoryItemWire) []byte {
	out := appendU16(nil, uint16(len(items)))
	for _, it := range items {
		name := []byte(it.Name)
		out = append(out, byte(len(name)))
		out = append(out, name...)
		out = appendU16(out, it.Count)
		out = appendU16(out, it.Status)
	}
	return out
}

// EncodeOnboardSampleInfoResponseBody builds the onboard-sample-info
// response body. removed_count is always 0: the simulator never removes a
// sample once accepted.
func EncodeOnboardSampleInfoResponseBody(sampleIDs []string) []byte {
	out := appendU16(nil, uint16(len(sampleIDs)))
	for _, id := range sampleIDs {
		b := []byte(id)
		out = append(out, byte(len(b)))
		out = append(out, b...)
	}
	out = appendU16(out, 0)
	return out
}

// ConsumableWire is one consumable slot on the wire.
type ConsumableWire struct {
	ID     uint8
	Status uint8
}

// ModuleWire is one module's consumables on the wire.
type ModuleWire struct {
	ID          string
	Consumables []ConsumableWire
}

// EncodeConsumableInventoryResponseBody builds the consumable-inventory
// response body.
func EncodeConsumableInventoryResponseBody(modules []ModuleWire) []byte {
	out := []byte{byte(len(modules))}
	for _, m := range modules {
		id := []byte(m.ID)
		out = append(out, byte(len(id)))
		out = append(out, id...)
		out = append(out, byte(len(m.Consumables)))
		for _, c := range m.Consumables {
			out = append(out, c.ID, c.Status)
		}
	}
	return out
}

type protoError string

func (e protoError) Error() string { return string(e) }

func errTooShort(what string) error {
	return protoError("lasproto: " + what + " too short")
}
