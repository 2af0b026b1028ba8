// Package events decodes Pump.Fun CreateEvent payloads embedded in
// transaction log output. The event layout is not published by the program;
// the field order below (name, symbol, uri, mint, bonding curve, creator)
// is inferred from observed payloads, so all parsing is kept behind
// DecodeCreateEvent to localize a future layout change.
package events

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/sirupsen/logrus"

	"pumpfun-sniper/internal/encoding"
)

// ProgramDataPrefix marks log lines that carry base64 event payloads.
const ProgramDataPrefix = "Program data: "

// createEventDiscriminator identifies a CreateEvent payload (first 8 bytes).
var createEventDiscriminator = []byte{27, 114, 169, 77, 222, 235, 99, 118}

const (
	// minCreateEventSize is the smallest plausible payload: 8-byte
	// discriminator, three empty length-prefixed strings, three 32-byte keys.
	minCreateEventSize = 100
	// maxStringLen bounds the declared length of each string field.
	maxStringLen = 1000
)

// ErrNotCreateEvent reports a payload that is not a CreateEvent at all
// (too short or wrong discriminator). Callers try the next log line.
var ErrNotCreateEvent = errors.New("not a create event")

// ErrMalformedEvent reports a payload that matched the discriminator but
// could not be parsed. Callers skip the line and keep scanning.
var ErrMalformedEvent = errors.New("malformed create event")

// CreateEvent is a decoded Pump.Fun token creation event. Key fields are
// rendered as Base58 text.
type CreateEvent struct {
	Name         string
	Symbol       string
	URI          string
	Mint         string
	BondingCurve string
	Creator      string
	Signature    string
}

// DecodeCreateEvent parses a raw event payload. It returns ErrNotCreateEvent
// when the payload is not a CreateEvent, and an error wrapping
// ErrMalformedEvent when the discriminator matched but the body is truncated
// or carries an implausible string length. Bytes beyond the sixth field are
// ignored.
func DecodeCreateEvent(data []byte) (*CreateEvent, error) {
	if len(data) < minCreateEventSize {
		return nil, ErrNotCreateEvent
	}
	if !bytes.Equal(data[:8], createEventDiscriminator) {
		return nil, ErrNotCreateEvent
	}

	dec := bin.NewBinDecoder(data[8:])

	name, err := readString(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %s", ErrMalformedEvent, err)
	}
	symbol, err := readString(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol: %s", ErrMalformedEvent, err)
	}
	uri, err := readString(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: uri: %s", ErrMalformedEvent, err)
	}

	mint, err := readPubkey(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: mint: %s", ErrMalformedEvent, err)
	}
	bondingCurve, err := readPubkey(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: bonding curve: %s", ErrMalformedEvent, err)
	}
	creator, err := readPubkey(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: creator: %s", ErrMalformedEvent, err)
	}

	return &CreateEvent{
		Name:         name,
		Symbol:       symbol,
		URI:          uri,
		Mint:         mint,
		BondingCurve: bondingCurve,
		Creator:      creator,
	}, nil
}

// readString reads a 4-byte little-endian length followed by that many
// bytes. Invalid UTF-8 sequences are replaced, never rejected: the log
// source is not a trusted, versioned schema.
func readString(dec *bin.Decoder) (string, error) {
	length, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", fmt.Errorf("length prefix: %s", err)
	}
	if length > maxStringLen {
		return "", fmt.Errorf("declared length %d exceeds ceiling %d", length, maxStringLen)
	}
	if int(length) > dec.Remaining() {
		return "", fmt.Errorf("declared length %d exceeds %d remaining bytes", length, dec.Remaining())
	}
	raw, err := dec.ReadNBytes(int(length))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(raw), "�"), nil
}

// readPubkey reads a fixed 32-byte key and renders it as Base58.
func readPubkey(dec *bin.Decoder) (string, error) {
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return "", err
	}
	var key [32]byte
	copy(key[:], raw)
	return encoding.EncodeBase58(key), nil
}

// ScanLogs walks transaction log lines in order and returns the first
// decodable CreateEvent. Lines without the program-data prefix, lines whose
// payload is not valid base64, and payloads with a foreign discriminator are
// skipped silently; malformed CreateEvent payloads are logged at debug level
// and scanning continues with the next line.
func ScanLogs(logs []string) (*CreateEvent, bool) {
	for _, line := range logs {
		if !strings.HasPrefix(line, ProgramDataPrefix) {
			continue
		}

		payload, err := base64.StdEncoding.DecodeString(line[len(ProgramDataPrefix):])
		if err != nil {
			continue
		}

		event, err := DecodeCreateEvent(payload)
		if err != nil {
			if errors.Is(err, ErrMalformedEvent) {
				logrus.WithError(err).Debug("Skipping malformed create event payload")
			}
			continue
		}
		return event, true
	}
	return nil, false
}
