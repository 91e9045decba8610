// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"errors"
	"net"
	"os"
	"time"
)

// A Transport sends and receives whole datagrams. Receive blocks for at
// most timeout and returns ErrTimeout when nothing arrived. A Transport is
// owned by a single session and is not used concurrently.
type Transport interface {
	Send(b []byte, to net.Addr) error
	Receive(buf []byte, timeout time.Duration) (int, net.Addr, error)
	Close() error
}

// ListenUDP returns a Transport on a fresh UDP socket bound to an
// ephemeral port on all interfaces.
func ListenUDP() (Transport, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, err
	}
	return NewPacketTransport(conn), nil
}

// NewPacketTransport wraps conn. Closing the Transport closes conn.
func NewPacketTransport(conn net.PacketConn) Transport {
	return &packetTransport{conn: conn}
}

type packetTransport struct {
	conn net.PacketConn
}

func (t *packetTransport) Send(b []byte, to net.Addr) error {
	_, err := t.conn.WriteTo(b, to)
	return err
}

func (t *packetTransport) Receive(buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, err
	}
	n, from, err := t.conn.ReadFrom(buf)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, ErrTimeout
		}
		return 0, nil, err
	}
	return n, from, nil
}

func (t *packetTransport) Close() error {
	return t.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
