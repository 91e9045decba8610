// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeReadRequest returns the wire form of a read request for filename in
// the given mode. It fails with ErrEncoding for values that cannot be
// framed unambiguously.
func EncodeReadRequest(filename, mode string) ([]byte, error) {
	return ReadRequest{Filename: filename, Mode: mode}.Marshal()
}

func EncodeAck(block uint16) []byte {
	bs := make([]byte, headerSize)
	binary.BigEndian.PutUint16(bs, uint16(OpAck))
	binary.BigEndian.PutUint16(bs[opcodeSize:], block)
	return bs
}

// Decode parses a received datagram. Data payloads are copied, so the
// caller may reuse bs. Anything that isn't a well formed DATA, ACK or
// ERROR packet yields an error matching ErrMalformedPacket.
func Decode(bs []byte) (Message, error) {
	if len(bs) < opcodeSize {
		return nil, fmt.Errorf("%w: %d byte datagram", ErrMalformedPacket, len(bs))
	}

	op := Opcode(binary.BigEndian.Uint16(bs))
	switch op {
	case OpData:
		if len(bs) < headerSize {
			return nil, fmt.Errorf("%w: short DATA packet (%d bytes)", ErrMalformedPacket, len(bs))
		}
		if len(bs) > MaxPacketSize {
			return nil, fmt.Errorf("%w: oversized DATA packet (%d bytes)", ErrMalformedPacket, len(bs))
		}
		return Data{
			Block:   binary.BigEndian.Uint16(bs[opcodeSize:]),
			Payload: bytes.Clone(bs[headerSize:]),
		}, nil

	case OpAck:
		if len(bs) != headerSize {
			return nil, fmt.Errorf("%w: ACK packet of %d bytes", ErrMalformedPacket, len(bs))
		}
		return Ack{Block: binary.BigEndian.Uint16(bs[opcodeSize:])}, nil

	case OpError:
		msg := bs[opcodeSize:]
		msg = bytes.TrimSuffix(msg, []byte{0})
		return ErrorMessage{Message: string(msg)}, nil

	default:
		return nil, &OpcodeError{Opcode: op}
	}
}
