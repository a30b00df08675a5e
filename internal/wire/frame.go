// Package wire implements the Byzantine generals frame codec: a single
// message on the stream is a 4-byte ASCII intent tag, a 4-byte
// big-endian length, and that many bytes of JSON payload.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"strings"
)

// Intent identifies the kind of message carried by a frame.
type Intent string

const (
	IntentOrder    Intent = "ORDR"
	IntentVote     Intent = "VOTE"
	IntentDecision Intent = "DCSN"
)

const (
	intentLen = 4
	lengthLen = 4
)

// OrderMsg is the ORDR payload: the primary's broadcast order plus the
// quorum addresses a secondary needs to cast its own vote.
type OrderMsg struct {
	Primary string   `json:"primary"`
	Order   string   `json:"order"`
	Quorum  []string `json:"quorum"`
}

// VoteMsg is the VOTE payload exchanged between quorum members.
type VoteMsg struct {
	Sender string `json:"sender"`
	Vote   string `json:"vote"`
}

// DecisionMsg is the DCSN payload a secondary sends back to the primary.
type DecisionMsg struct {
	Sender   string `json:"sender"`
	Majority string `json:"majority"`
}

// Frame is a single decoded wire message.
type Frame struct {
	Intent  Intent
	Payload []byte
}

func encodeIntent(intent Intent) [intentLen]byte {
	var out [intentLen]byte
	s := strings.ToUpper(string(intent))
	for i := range out {
		if i < len(s) {
			out[i] = s[i]
		} else {
			out[i] = ' '
		}
	}
	return out
}

// Encode serializes intent+payload into the wire format: 4-byte
// space-padded intent, 4-byte big-endian length, then the payload.
func Encode(intent Intent, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	header := encodeIntent(intent)
	buf := make([]byte, 0, intentLen+lengthLen+len(body))
	buf = append(buf, header[:]...)

	var lenBytes [lengthLen]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(body)))
	buf = append(buf, lenBytes[:]...)

	return append(buf, body...), nil
}

// ReadFrame applies the read contract: exactly 4 bytes of intent,
// exactly 4 bytes of length, exactly length bytes of payload. ok is
// false on end-of-stream, a short read, or any decode failure — all
// three collapse to "no message" for the caller, per the frame codec's
// null-message sentinel rule.
func ReadFrame(r io.Reader) (frame Frame, ok bool) {
	var header [intentLen]byte
	if n, err := io.ReadFull(r, header[:]); n == 0 || err != nil {
		return Frame{}, false
	}

	var lenBytes [lengthLen]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return Frame{}, false
	}
	length := binary.BigEndian.Uint32(lenBytes[:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, false
	}

	intent := Intent(strings.ToUpper(strings.TrimRight(string(header[:]), " ")))
	return Frame{Intent: intent, Payload: payload}, true
}

// DecodeOrder unmarshals the frame payload as an OrderMsg.
func (f Frame) DecodeOrder() (OrderMsg, bool) {
	var m OrderMsg
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		return OrderMsg{}, false
	}
	return m, true
}

// DecodeVote unmarshals the frame payload as a VoteMsg.
func (f Frame) DecodeVote() (VoteMsg, bool) {
	var m VoteMsg
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		return VoteMsg{}, false
	}
	return m, true
}

// DecodeDecision unmarshals the frame payload as a DecisionMsg.
func (f Frame) DecodeDecision() (DecisionMsg, bool) {
	var m DecisionMsg
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		return DecisionMsg{}, false
	}
	return m, true
}
