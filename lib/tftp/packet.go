// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tftp implements the read side of the Trivial File Transfer
// Protocol: a client that requests a file, receives it in lockstep as
// numbered 512 byte blocks and acknowledges each block in turn.
package tftp

import (
	"encoding/binary"
	"fmt"
)

const (
	// BlockSize is the payload size of a full data block. A shorter block
	// ends the transfer.
	BlockSize = 512
	// MaxPacketSize is the largest datagram the protocol produces.
	MaxPacketSize = headerSize + BlockSize
	// MaxFieldLength bounds the filename and mode strings in a request.
	MaxFieldLength = 255

	// ModeNetascii is the only transfer mode this client requests.
	ModeNetascii = "netascii"

	opcodeSize = 2
	headerSize = opcodeSize + 2
)

type Opcode uint16

const (
	OpRRQ   Opcode = 1
	OpWRQ   Opcode = 2 // never sent by this client
	OpData  Opcode = 3
	OpAck   Opcode = 4
	OpError Opcode = 5
)

func (o Opcode) String() string {
	switch o {
	case OpRRQ:
		return "RRQ"
	case OpWRQ:
		return "WRQ"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	default:
		return fmt.Sprintf("Opcode(%d)", uint16(o))
	}
}

// A Message is one of ReadRequest, Data, Ack or ErrorMessage.
type Message interface {
	Opcode() Opcode
	Marshal() ([]byte, error)
}

type ReadRequest struct {
	Filename string
	Mode     string
}

type Data struct {
	Block   uint16
	Payload []byte
}

type Ack struct {
	Block uint16
}

// ErrorMessage is the server's error report. The message is carried
// verbatim, without its NUL terminator.
type ErrorMessage struct {
	Message string
}

var (
	_ Message = ReadRequest{}
	_ Message = Data{}
	_ Message = Ack{}
	_ Message = ErrorMessage{}
)

func (ReadRequest) Opcode() Opcode  { return OpRRQ }
func (Data) Opcode() Opcode         { return OpData }
func (Ack) Opcode() Opcode          { return OpAck }
func (ErrorMessage) Opcode() Opcode { return OpError }

func (r ReadRequest) Marshal() ([]byte, error) {
	if err := checkField("filename", r.Filename); err != nil {
		return nil, err
	}
	if err := checkField("mode", r.Mode); err != nil {
		return nil, err
	}
	bs := make([]byte, 0, opcodeSize+len(r.Filename)+1+len(r.Mode)+1)
	bs = binary.BigEndian.AppendUint16(bs, uint16(OpRRQ))
	bs = append(bs, r.Filename...)
	bs = append(bs, 0)
	bs = append(bs, r.Mode...)
	bs = append(bs, 0)
	return bs, nil
}

func (d Data) Marshal() ([]byte, error) {
	if len(d.Payload) > BlockSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds block size", ErrEncoding, len(d.Payload))
	}
	bs := make([]byte, headerSize, headerSize+len(d.Payload))
	binary.BigEndian.PutUint16(bs, uint16(OpData))
	binary.BigEndian.PutUint16(bs[opcodeSize:], d.Block)
	return append(bs, d.Payload...), nil
}

func (a Ack) Marshal() ([]byte, error) {
	return EncodeAck(a.Block), nil
}

func (e ErrorMessage) Marshal() ([]byte, error) {
	for i := 0; i < len(e.Message); i++ {
		if e.Message[i] == 0 {
			return nil, fmt.Errorf("%w: error message contains NUL byte", ErrEncoding)
		}
	}
	bs := make([]byte, 0, opcodeSize+len(e.Message)+1)
	bs = binary.BigEndian.AppendUint16(bs, uint16(OpError))
	bs = append(bs, e.Message...)
	return append(bs, 0), nil
}

func (d Data) String() string {
	return fmt.Sprintf("DATA(block=%d, size=%d)", d.Block, len(d.Payload))
}

// checkField verifies that s can be sent as a NUL terminated ASCII string
// without making the frame ambiguous.
func checkField(name, s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty %s", ErrEncoding, name)
	case len(s) > MaxFieldLength:
		return fmt.Errorf("%w: %s longer than %d bytes", ErrEncoding, name, MaxFieldLength)
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == 0:
			return fmt.Errorf("%w: %s contains NUL byte at offset %d", ErrEncoding, name, i)
		case c > 0x7f:
			return fmt.Errorf("%w: %s contains non-ASCII byte at offset %d", ErrEncoding, name, i)
		}
	}
	return nil
}
