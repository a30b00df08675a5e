package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := OrderMsg{Primary: "127.0.0.1:5001", Order: "attack", Quorum: []string{"127.0.0.1:5002"}}

	data, err := Encode(IntentOrder, payload)
	require.NoError(t, err)

	frame, ok := ReadFrame(bytes.NewReader(data))
	require.True(t, ok)
	assert.Equal(t, IntentOrder, frame.Intent)

	decoded, ok := frame.DecodeOrder()
	require.True(t, ok)
	assert.Equal(t, payload, decoded)
}

func TestIntentIsNormalizedToUppercase(t *testing.T) {
	data, err := Encode(Intent("ordr"), VoteMsg{Sender: "a", Vote: "attack"})
	require.NoError(t, err)

	frame, ok := ReadFrame(bytes.NewReader(data))
	require.True(t, ok)
	assert.Equal(t, IntentOrder, frame.Intent)
}

func TestReadFrameEmptyStreamIsNoMessage(t *testing.T) {
	_, ok := ReadFrame(bytes.NewReader(nil))
	assert.False(t, ok)
}

func TestReadFrameShortReadIsNoMessage(t *testing.T) {
	_, ok := ReadFrame(bytes.NewReader([]byte{'O', 'R', 'D'}))
	assert.False(t, ok)
}

func TestReadFrameTruncatedPayloadIsNoMessage(t *testing.T) {
	data, err := Encode(IntentVote, VoteMsg{Sender: "a", Vote: "retreat"})
	require.NoError(t, err)

	_, ok := ReadFrame(bytes.NewReader(data[:len(data)-2]))
	assert.False(t, ok)
}

func TestDecodeVoteRejectsMismatchedPayload(t *testing.T) {
	frame := Frame{Intent: IntentVote, Payload: []byte(`{"sender": 5}`)}
	_, ok := frame.DecodeVote()
	assert.False(t, ok)
}
