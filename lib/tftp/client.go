// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/syncthing/sttftp/lib/netascii"
)

const (
	DefaultTimeout    = time.Second
	DefaultMaxRetries = 5
)

// Config holds the protocol tunables. The zero value is usable.
type Config struct {
	// Timeout is how long to wait for each datagram before
	// retransmitting. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of consecutive retransmissions allowed
	// before the transfer fails. Zero means DefaultMaxRetries.
	MaxRetries int
	// DecodeNetascii makes PerformTransfer translate line endings before
	// handing the file to the sink.
	DecodeNetascii bool
}

func (c *Config) prepare() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// A Sink persists a completed transfer.
type Sink interface {
	WriteAll(ctx context.Context, name string, data []byte) error
}

type Option func(*Client)

func WithSink(s Sink) Option {
	return func(c *Client) {
		c.sink = s
	}
}

// WithObserver sets the Observer told about session events. Use Observers
// to attach more than one.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.obs = o
	}
}

// WithListener replaces the function used to open a fresh Transport for
// each transfer. The default is ListenUDP.
func WithListener(fn func() (Transport, error)) Option {
	return func(c *Client) {
		c.listen = fn
	}
}

// Client performs read transfers. Each call uses its own socket, so a
// Client may be used from several goroutines at once.
type Client struct {
	cfg    Config
	sink   Sink
	obs    Observer
	listen func() (Transport, error)
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.prepare()
	c := &Client{
		cfg:    cfg,
		obs:    NopObserver{},
		listen: ListenUDP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches filename from the server at host:port and returns its
// contents as received, without line ending translation. No partial
// content is returned on error.
func (c *Client) Get(ctx context.Context, filename, host string, port int) ([]byte, error) {
	data, err := c.get(ctx, filename, host, port)
	c.obs.TransferDone(filename, len(data), err)
	return data, err
}

func (c *Client) get(ctx context.Context, filename, host string, port int) ([]byte, error) {
	// Encode first; a request we can't send must not cost a socket.
	req, err := EncodeReadRequest(filename, ModeNetascii)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	server, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolving server address: %w", err)
	}

	tr, err := c.listen()
	if err != nil {
		return nil, fmt.Errorf("opening socket: %w", err)
	}
	defer tr.Close()

	s := newSession(filename, server, tr, c.cfg, c.obs)
	if err := s.start(req); err != nil {
		return nil, err
	}
	if err := s.run(ctx); err != nil {
		return nil, err
	}
	return s.content.Bytes(), nil
}

// PerformTransfer fetches filename and writes it to the configured sink
// under the same name. Errors writing to the sink are returned as
// *SaveError; anything else means the transfer itself failed.
func (c *Client) PerformTransfer(ctx context.Context, filename, host string, port int) error {
	if c.sink == nil {
		return errors.New("no sink configured")
	}

	data, err := c.Get(ctx, filename, host, port)
	if err != nil {
		return err
	}

	if c.cfg.DecodeNetascii {
		data, err = netascii.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding netascii: %w", err)
		}
	}

	if err := c.sink.WriteAll(ctx, filename, data); err != nil {
		return &SaveError{Name: filename, Err: err}
	}
	return nil
}
