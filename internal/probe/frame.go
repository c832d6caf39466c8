package probe

import (
	"encoding/binary"
	"encoding/json"
	"errors"
)

// Wire format, both directions: a UTF-8 JSON document preceded by its byte
// length as an unsigned 32-bit little-endian integer.

// ErrUnreachable covers every way the probe can fail to answer: a spawn
// failure, a response shorter than the 4-byte header, a declared length past
// the end of the body, or a body that is not valid JSON. Callers treat all of
// them as "no fresh data this cycle", never as a crash.
var ErrUnreachable = errors.New("probe unreachable")

// encodeFrame wraps a request payload in the length-prefixed wire format.
func encodeFrame(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	return frame, nil
}

// decodeFrame extracts the first framed JSON document from raw probe output
// into out. Any malformed frame yields ErrUnreachable.
func decodeFrame(raw []byte, out any) error {
	if len(raw) < 4 {
		return ErrUnreachable
	}
	declared := binary.LittleEndian.Uint32(raw)
	if uint64(declared) > uint64(len(raw)-4) {
		return ErrUnreachable
	}
	if err := json.Unmarshal(raw[4:4+declared], out); err != nil {
		return ErrUnreachable
	}
	return nil
}
