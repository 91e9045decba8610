// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

type State int

const (
	StateInit State = iota
	StateAwaitingBlock
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitingBlock:
		return "awaiting-block"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A session is a single read transfer. It is driven by one goroutine from
// start to the end of run and is not reused.
type session struct {
	filename string
	server   net.Addr // where acks and retransmissions go
	lastAck  uint16
	content  bytes.Buffer
	state    State
	err      error

	lastSent []byte
	timeouts int // consecutive, reset by each DATA

	tr         Transport
	timeout    time.Duration
	maxRetries int
	obs        Observer

	// One byte larger than any valid packet so oversized datagrams are
	// seen as such instead of being truncated.
	rxBuf []byte
}

func newSession(filename string, server net.Addr, tr Transport, cfg Config, obs Observer) *session {
	return &session{
		filename:   filename,
		server:     server,
		state:      StateInit,
		tr:         tr,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		obs:        obs,
		rxBuf:      make([]byte, MaxPacketSize+1),
	}
}

// start sends the encoded read request and moves to StateAwaitingBlock.
func (s *session) start(req []byte) error {
	if s.state != StateInit {
		return fmt.Errorf("session already started (%v)", s.state)
	}
	s.state = StateAwaitingBlock
	s.send(req)
	if s.state == StateAwaitingBlock {
		s.obs.RequestSent(s.filename, s.server)
	}
	return s.err
}

// run receives and answers datagrams until the transfer is done or has
// failed. The context is checked between receives.
func (s *session) run(ctx context.Context) error {
	for s.state == StateAwaitingBlock {
		if err := ctx.Err(); err != nil {
			s.fail(err)
			break
		}

		n, from, err := s.tr.Receive(s.rxBuf, s.timeout)
		switch {
		case errors.Is(err, ErrTimeout):
			s.handleTimeout()
		case err != nil:
			s.fail(fmt.Errorf("receive: %w", err))
		default:
			s.handleDatagram(s.rxBuf[:n], from)
		}
	}
	return s.err
}

func (s *session) handleTimeout() {
	if s.timeouts >= s.maxRetries {
		s.fail(fmt.Errorf("%w: no response after %d retransmissions", ErrTransferTimeout, s.timeouts))
		return
	}
	s.timeouts++
	s.obs.Retransmit(s.timeouts)
	s.send(s.lastSent)
}

func (s *session) handleDatagram(bs []byte, from net.Addr) {
	msg, err := Decode(bs)
	if err != nil {
		s.obs.PacketDiscarded(from, bs, err)
		return
	}

	switch msg := msg.(type) {
	case ErrorMessage:
		s.rebind(from)
		s.fail(&ServerError{Message: msg.Message})

	case Data:
		s.timeouts = 0
		s.rebind(from)
		s.handleData(msg)

	default:
		// A server has no business sending us requests or acks.
		s.obs.PacketDiscarded(from, bs, &OpcodeError{Opcode: msg.Opcode()})
	}
}

func (s *session) handleData(d Data) {
	expected := s.lastAck + 1
	if d.Block != expected {
		// A duplicate, most likely because our ack was lost. Repeating
		// the ack gets the server moving again.
		s.obs.BlockIgnored(d.Block, expected)
		s.sendAck(s.lastAck)
		return
	}

	s.content.Write(d.Payload)
	s.lastAck = d.Block
	s.obs.BlockAccepted(d.Block, len(d.Payload))

	if len(d.Payload) < BlockSize {
		// The file is complete whether or not the server hears about it.
		s.state = StateDone
		ack := EncodeAck(d.Block)
		s.lastSent = ack
		if err := s.tr.Send(ack, s.server); err != nil {
			s.obs.FinalAckFailed(d.Block, err)
		}
		return
	}
	s.sendAck(d.Block)
}

// rebind makes from the endpoint for everything sent from now on. Servers
// answer a request from a fresh port; we follow.
func (s *session) rebind(from net.Addr) {
	if from == nil || (s.server != nil && s.server.String() == from.String()) {
		return
	}
	s.obs.ServerChanged(s.server, from)
	s.server = from
}

func (s *session) sendAck(block uint16) {
	s.send(EncodeAck(block))
}

func (s *session) send(bs []byte) {
	s.lastSent = bs
	if err := s.tr.Send(bs, s.server); err != nil {
		s.fail(fmt.Errorf("send to %v: %w", s.server, err))
	}
}

func (s *session) fail(err error) {
	s.state = StateFailed
	s.err = err
}
