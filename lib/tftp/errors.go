// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"errors"
	"fmt"
)

var (
	// ErrEncoding is returned for requests that cannot be put on the wire.
	// Nothing has been sent when this is returned.
	ErrEncoding = errors.New("invalid message")
	// ErrMalformedPacket is returned by Decode for datagrams that are not
	// valid protocol messages. A session ignores such datagrams.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrTransferTimeout is returned when the server stays silent through
	// all retransmissions.
	ErrTransferTimeout = errors.New("transfer timed out")
	// ErrTimeout is returned by a Transport when a receive deadline
	// expires. It is never returned to callers of Client.
	ErrTimeout = errors.New("receive timeout")
)

// OpcodeError is returned by Decode for an opcode the client does not
// accept from a server.
type OpcodeError struct {
	Opcode Opcode
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("malformed packet: unexpected opcode %v", e.Opcode)
}

func (e *OpcodeError) Is(target error) bool {
	return target == ErrMalformedPacket
}

// ServerError carries the message of an ERROR packet sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// SaveError is returned by PerformTransfer when the transfer itself
// completed but the result could not be written to the sink.
type SaveError struct {
	Name string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving %s: %v", e.Name, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
