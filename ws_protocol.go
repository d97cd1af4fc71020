package gnuplotter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Preview wire format. Every websocket message is an 8 byte envelope
// followed by a typed payload; integers are little endian.
const (
	ProtocolVersion byte = 1

	MessageTypeFrame     byte = 0x01
	MessageTypeMetadata  byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	EnvelopeHeaderSize = 8
)

type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte
	Type     byte
	Length   uint32 // Payload length in bytes
}

// FrameMessage carries one rendered SVG document (type 0x01).
type FrameMessage struct {
	Seq uint32
	SVG []byte
}

// StreamEndMessage is sent once the input is exhausted (type 0x03).
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// WSMessage is a decoded envelope and its payload.
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: FrameMessage, Metadata, StreamEndMessage
}

func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeFrameMessage lays out Seq(4) | SVG length(4) | SVG bytes.
func EncodeFrameMessage(msg FrameMessage) []byte {
	buf := make([]byte, 8+len(msg.SVG))
	binary.LittleEndian.PutUint32(buf[0:4], msg.Seq)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(msg.SVG)))
	copy(buf[8:], msg.SVG)
	return buf
}

func DecodeFrameMessage(buf []byte) (FrameMessage, error) {
	if len(buf) < 8 {
		return FrameMessage{}, fmt.Errorf("buffer too short for FRAME message: expected at least 8 bytes, got %d", len(buf))
	}

	seq := binary.LittleEndian.Uint32(buf[0:4])
	n := binary.LittleEndian.Uint32(buf[4:8])
	if uint32(len(buf)) != 8+n {
		return FrameMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d byte document, got %d", 8+n, n, len(buf))
	}

	svg := make([]byte, n)
	copy(svg, buf[8:])
	return FrameMessage{Seq: seq, SVG: svg}, nil
}

// encodeJSONPayload lays out JSON length(4) | JSON.
func encodeJSONPayload(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)
	return buf, nil
}

func decodeJSONPayload(buf []byte, kind string, v interface{}) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", kind, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if uint32(len(buf)) != 4+jsonLength {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", 4+jsonLength, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal %s message: %w", kind, err)
	}
	return nil
}

func EncodeMetadataMessage(metadata Metadata) ([]byte, error) {
	buf, err := encodeJSONPayload(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return buf, nil
}

func DecodeMetadataMessage(buf []byte) (Metadata, error) {
	var metadata Metadata
	if err := decodeJSONPayload(buf, "METADATA", &metadata); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func EncodeStreamEndMessage(msg StreamEndMessage) ([]byte, error) {
	buf, err := encodeJSONPayload(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream end message: %w", err)
	}
	return buf, nil
}

func DecodeStreamEndMessage(buf []byte) (StreamEndMessage, error) {
	var msg StreamEndMessage
	if err := decodeJSONPayload(buf, "STREAM_END", &msg); err != nil {
		return StreamEndMessage{}, err
	}
	return msg, nil
}

// EncodeWSMessage encodes the payload selected by the header type and
// fills in the header length.
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeFrame:
		frame, ok := msg.Payload.(FrameMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected FrameMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload = EncodeFrameMessage(frame)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(Metadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected Metadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeMetadataMessage(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeStreamEndMessage(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Header.Length = uint32(len(payload))
	return append(EncodeEnvelopeHeader(msg.Header), payload...), nil
}

// newWSMessage wraps a payload in a current-version envelope.
func newWSMessage(msgType byte, payload interface{}) WSMessage {
	return WSMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: msgType},
		Payload: payload,
	}
}

func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := EnvelopeHeaderSize + env.Length
	if uint32(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize : EnvelopeHeaderSize+env.Length]

	var payload interface{}
	switch env.Type {
	case MessageTypeFrame:
		payload, err = DecodeFrameMessage(payloadBytes)
	case MessageTypeMetadata:
		payload, err = DecodeMetadataMessage(payloadBytes)
	case MessageTypeStreamEnd:
		payload, err = DecodeStreamEndMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}
