package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	formatVersionCurrent = 1

	// MaxPayloadSize bounds the opaque payload stored with a session.
	MaxPayloadSize = 1 << 20
)

var (
	// ErrUnsupportedVersion is returned when a blob carries an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported session format version")
	// ErrFieldTooLong is returned when a string field does not fit the encoding.
	ErrFieldTooLong = errors.New("session field too long")
)

// Encode serializes s into the current binary format.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	var buf bytes.Buffer
	buf.WriteByte(formatVersionCurrent)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"access token", s.AccessToken},
		{"refresh token", s.RefreshToken},
		{"token type", s.TokenType},
		{"user id", s.UserID},
		{"email", s.Email},
	} {
		if len(field.value) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s", ErrFieldTooLong, field.name)
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field.value))); err != nil {
			return nil, err
		}
		buf.WriteString(field.value)
	}

	var expires int64
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.UnixMilli()
	}
	if err := binary.Write(&buf, binary.BigEndian, expires); err != nil {
		return nil, err
	}

	if len(s.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload", ErrFieldTooLong)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(s.Payload))); err != nil {
		return nil, err
	}
	buf.Write(s.Payload)

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersionCurrent {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	s := &Session{}
	for _, dst := range []*string{&s.AccessToken, &s.RefreshToken, &s.TokenType, &s.UserID, &s.Email} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*dst = string(raw)
	}

	var expires int64
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	if expires != 0 {
		s.ExpiresAt = time.UnixMilli(expires).UTC()
	}

	var payloadLen uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return nil, err
	}
	if payloadLen > MaxPayloadSize || int64(payloadLen) > int64(reader.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	if payloadLen > 0 {
		s.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(reader, s.Payload); err != nil {
			return nil, err
		}
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after session")
	}

	return s, nil
}
