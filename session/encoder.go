package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const stateFormatVersionV1 = 1

// Encode serializes a State into the v1 binary layout.
func Encode(s *State) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(stateFormatVersionV1)
	buf.WriteByte(byte(s.Challenge))

	if len(s.MagicNumber) > 255 {
		return nil, errors.New("magic number too long")
	}
	buf.WriteByte(byte(len(s.MagicNumber)))
	buf.WriteString(s.MagicNumber)

	if len(s.Credential) > 1<<20 {
		return nil, errors.New("credential blob too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(s.Credential))); err != nil {
		return nil, err
	}
	buf.Write(s.Credential)

	if err := binary.Write(&buf, binary.BigEndian, s.version); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary State blob.
func Decode(data []byte) (*State, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != stateFormatVersionV1 {
		return nil, errors.New("invalid state version")
	}

	s := &State{}

	challenge, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if challenge > byte(ChallengeValidated) {
		return nil, errors.New("invalid challenge state")
	}
	s.Challenge = ChallengeState(challenge)

	magicLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	magic := make([]byte, magicLen)
	if _, err := io.ReadFull(reader, magic); err != nil {
		return nil, err
	}
	s.MagicNumber = string(magic)

	var credLen uint32
	if err := binary.Read(reader, binary.BigEndian, &credLen); err != nil {
		return nil, err
	}
	if credLen > 1<<20 {
		return nil, errors.New("credential blob too large")
	}
	if credLen > 0 {
		cred := make([]byte, credLen)
		if _, err := io.ReadFull(reader, cred); err != nil {
			return nil, err
		}
		s.Credential = cred
	}

	if err := binary.Read(reader, binary.BigEndian, &s.version); err != nil {
		return nil, err
	}

	return s, nil
}
