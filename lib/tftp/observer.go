// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"encoding/hex"
	"log/slog"
	"net"

	"github.com/syncthing/sttftp/internal/slogutil"
)

// An Observer is told about everything a session does. Methods are called
// synchronously from the session's loop and must not block. Byte slices
// passed to an Observer are only valid for the duration of the call.
type Observer interface {
	RequestSent(filename string, server net.Addr)
	ServerChanged(from, to net.Addr)
	BlockAccepted(block uint16, size int)
	BlockIgnored(block, expected uint16)
	Retransmit(attempt int)
	PacketDiscarded(from net.Addr, data []byte, err error)
	FinalAckFailed(block uint16, err error)
	TransferDone(filename string, size int, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) RequestSent(string, net.Addr)            {}
func (NopObserver) ServerChanged(_, _ net.Addr)             {}
func (NopObserver) BlockAccepted(uint16, int)               {}
func (NopObserver) BlockIgnored(_, _ uint16)                {}
func (NopObserver) Retransmit(int)                          {}
func (NopObserver) PacketDiscarded(net.Addr, []byte, error) {}
func (NopObserver) FinalAckFailed(uint16, error)            {}
func (NopObserver) TransferDone(string, int, error)         {}

// Observers fans each event out to all of its members, in order.
type Observers []Observer

func (os Observers) RequestSent(filename string, server net.Addr) {
	for _, o := range os {
		o.RequestSent(filename, server)
	}
}

func (os Observers) ServerChanged(from, to net.Addr) {
	for _, o := range os {
		o.ServerChanged(from, to)
	}
}

func (os Observers) BlockAccepted(block uint16, size int) {
	for _, o := range os {
		o.BlockAccepted(block, size)
	}
}

func (os Observers) BlockIgnored(block, expected uint16) {
	for _, o := range os {
		o.BlockIgnored(block, expected)
	}
}

func (os Observers) Retransmit(attempt int) {
	for _, o := range os {
		o.Retransmit(attempt)
	}
}

func (os Observers) PacketDiscarded(from net.Addr, data []byte, err error) {
	for _, o := range os {
		o.PacketDiscarded(from, data, err)
	}
}

func (os Observers) FinalAckFailed(block uint16, err error) {
	for _, o := range os {
		o.FinalAckFailed(block, err)
	}
}

func (os Observers) TransferDone(filename string, size int, err error) {
	for _, o := range os {
		o.TransferDone(filename, size, err)
	}
}

// NewLogObserver returns an Observer that logs to l. Per block events are
// logged at debug level.
func NewLogObserver(l *slog.Logger) Observer {
	return &logObserver{l: l}
}

type logObserver struct {
	l *slog.Logger
}

func (o *logObserver) RequestSent(filename string, server net.Addr) {
	o.l.Info("Requesting file", slog.String("file", filename), slogutil.Address(server))
}

func (o *logObserver) ServerChanged(from, to net.Addr) {
	o.l.Debug("Following server to new endpoint", slog.Any("from", from), slog.Any("to", to))
}

func (o *logObserver) BlockAccepted(block uint16, size int) {
	o.l.Debug("Accepted block", slog.Int("block", int(block)), slog.Int("size", size))
}

func (o *logObserver) BlockIgnored(block, expected uint16) {
	o.l.Debug("Ignoring out of sequence block", slog.Int("block", int(block)), slog.Int("expected", int(expected)))
}

func (o *logObserver) Retransmit(attempt int) {
	o.l.Info("No response from server, retransmitting", slog.Int("attempt", attempt))
}

func (o *logObserver) PacketDiscarded(from net.Addr, data []byte, err error) {
	o.l.Debug("Discarding packet", slogutil.Address(from), slogutil.Error(err), slog.Any("data", slogutil.Expensive(func() any {
		return hex.EncodeToString(data)
	})))
}

func (o *logObserver) FinalAckFailed(block uint16, err error) {
	o.l.Info("Failed to acknowledge final block; server may retransmit", slog.Int("block", int(block)), slogutil.Error(err))
}

func (o *logObserver) TransferDone(filename string, size int, err error) {
	if err != nil {
		o.l.Warn("Transfer failed", slog.String("file", filename), slogutil.Error(err))
		return
	}
	o.l.Info("Transfer complete", slog.String("file", filename), slog.Int("size", size))
}
