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
	"testing"
	"time"

	"github.com/syncthing/sttftp/lib/testutil"
)

var (
	serverAddr   = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 69}
	transferAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50123}
	strangerAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50999}
)

// A scripted receive: either a datagram, a timeout or an error.
type step struct {
	data    []byte
	from    net.Addr
	timeout bool
	err     error
}

type sentPacket struct {
	data []byte
	to   string
}

// fakeTransport replays a script of receives and records sends. Once the
// script runs out every receive times out.
type fakeTransport struct {
	script  []step
	sent    []sentPacket
	sendErr error
	closed  bool
}

func (f *fakeTransport) Send(b []byte, to net.Addr) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentPacket{data: bytes.Clone(b), to: to.String()})
	return nil
}

func (f *fakeTransport) Receive(buf []byte, _ time.Duration) (int, net.Addr, error) {
	if len(f.script) == 0 {
		return 0, nil, ErrTimeout
	}
	s := f.script[0]
	f.script = f.script[1:]
	switch {
	case s.timeout:
		return 0, nil, ErrTimeout
	case s.err != nil:
		return 0, nil, s.err
	}
	return copy(buf, s.data), s.from, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) listener() (Transport, error) {
	return f, nil
}

// recordingObserver keeps a readable trace of session events.
type recordingObserver struct {
	events []string
}

func (r *recordingObserver) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recordingObserver) RequestSent(filename string, server net.Addr) {
	r.add("request %s %v", filename, server)
}

func (r *recordingObserver) ServerChanged(from, to net.Addr) {
	r.add("server %v -> %v", from, to)
}

func (r *recordingObserver) BlockAccepted(block uint16, size int) {
	r.add("accept %d %d", block, size)
}

func (r *recordingObserver) BlockIgnored(block, expected uint16) {
	r.add("ignore %d want %d", block, expected)
}

func (r *recordingObserver) Retransmit(attempt int) {
	r.add("retransmit %d", attempt)
}

func (r *recordingObserver) PacketDiscarded(from net.Addr, data []byte, _ error) {
	r.add("discard %d bytes from %v", len(data), from)
}

func (r *recordingObserver) FinalAckFailed(block uint16, err error) {
	r.add("final ack %d failed: %v", block, err)
}

func (r *recordingObserver) TransferDone(filename string, size int, err error) {
	r.add("done %s %d %v", filename, size, err)
}

func dataFrom(from net.Addr, block uint16, payload []byte) step {
	bs, err := Data{Block: block, Payload: payload}.Marshal()
	if err != nil {
		panic(err)
	}
	return step{data: bs, from: from}
}

func errorFrom(from net.Addr, msg string) step {
	bs, err := ErrorMessage{Message: msg}.Marshal()
	if err != nil {
		panic(err)
	}
	return step{data: bs, from: from}
}

func timeout() step {
	return step{timeout: true}
}

func payload(n int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, n)
}

func rrq(t *testing.T, filename string) sentPacket {
	t.Helper()
	bs, err := EncodeReadRequest(filename, ModeNetascii)
	testutil.FatalErr(t, err)
	return sentPacket{data: bs, to: serverAddr.String()}
}

func ack(block uint16, to net.Addr) sentPacket {
	return sentPacket{data: EncodeAck(block), to: to.String()}
}

func checkSent(t *testing.T, got, expected []sentPacket) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("sent %d packets, expected %d:\n got %v\nwant %v", len(got), len(expected), got, expected)
	}
	for i := range expected {
		if !bytes.Equal(got[i].data, expected[i].data) || got[i].to != expected[i].to {
			t.Errorf("packet %d: got %v to %s, expected %v to %s", i, got[i].data, got[i].to, expected[i].data, expected[i].to)
		}
	}
}

func newTestClient(tr *fakeTransport, cfg Config, obs Observer) *Client {
	return NewClient(cfg, WithListener(tr.listener), WithObserver(obs))
}

func get(t *testing.T, tr *fakeTransport, cfg Config, filename string) ([]byte, *recordingObserver, error) {
	t.Helper()
	obs := new(recordingObserver)
	c := newTestClient(tr, cfg, obs)
	data, err := c.Get(context.Background(), filename, "127.0.0.1", 69)
	if !tr.closed {
		t.Error("transport not closed")
	}
	return data, obs, err
}

func TestTwoBlockTransfer(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		dataFrom(transferAddr, 2, payload(511, 'b')),
	}}

	data, obs, err := get(t, tr, Config{}, "readme.txt")
	testutil.FatalErr(t, err)

	expected := append(payload(512, 'a'), payload(511, 'b')...)
	if !bytes.Equal(data, expected) {
		t.Errorf("got %d bytes of content, expected %d", len(data), len(expected))
	}
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "readme.txt"),
		ack(1, transferAddr),
		ack(2, transferAddr),
	})

	expectedEvents := []string{
		"request readme.txt 127.0.0.1:69",
		"server 127.0.0.1:69 -> 127.0.0.1:50123",
		"accept 1 512",
		"accept 2 511",
		"done readme.txt 1023 <nil>",
	}
	if fmt.Sprint(obs.events) != fmt.Sprint(expectedEvents) {
		t.Errorf("got events\n%q\nexpected\n%q", obs.events, expectedEvents)
	}
}

func TestSingleShortBlock(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, []byte("hello")),
	}}

	data, _, err := get(t, tr, Config{}, "hello.txt")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, string(data), "hello")
	checkSent(t, tr.sent, []sentPacket{rrq(t, "hello.txt"), ack(1, transferAddr)})
}

func TestEmptyFile(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, nil),
	}}

	data, _, err := get(t, tr, Config{}, "empty")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, len(data), 0)
	checkSent(t, tr.sent, []sentPacket{rrq(t, "empty"), ack(1, transferAddr)})
}

func TestDuplicateBlockNotAppended(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		dataFrom(transferAddr, 1, payload(512, 'a')),
		dataFrom(transferAddr, 2, payload(10, 'b')),
	}}

	data, obs, err := get(t, tr, Config{}, "dup")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, len(data), 522)
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "dup"),
		ack(1, transferAddr),
		ack(1, transferAddr),
		ack(2, transferAddr),
	})
	testutil.AssertEqual(t.Errorf, obs.events[3], "ignore 1 want 2")
}

func TestOutOfOrderFirstBlock(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 2, payload(100, 'x')),
		dataFrom(transferAddr, 1, payload(3, 'a')),
	}}

	data, _, err := get(t, tr, Config{}, "ooo")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, string(data), "aaa")
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "ooo"),
		ack(0, transferAddr),
		ack(1, transferAddr),
	})
}

func TestFullBlockIsNotTerminal(t *testing.T) {
	// Exactly one block's worth of content needs an empty block to end.
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		dataFrom(transferAddr, 2, payload(512, 'b')),
		dataFrom(transferAddr, 3, nil),
	}}

	data, _, err := get(t, tr, Config{}, "exact")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, len(data), 1024)
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "exact"),
		ack(1, transferAddr),
		ack(2, transferAddr),
		ack(3, transferAddr),
	})

	// Without the final block the session keeps waiting, then gives up.
	tr = &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
	}}
	data, _, err = get(t, tr, Config{MaxRetries: 1}, "exact")
	testutil.AssertErrorIs(t.Errorf, err, ErrTransferTimeout)
	testutil.AssertTrue(t.Errorf, data == nil, "partial content returned")
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "exact"),
		ack(1, transferAddr),
		ack(1, transferAddr),
	})
}

func TestServerError(t *testing.T) {
	tr := &fakeTransport{script: []step{
		errorFrom(transferAddr, "File not found"),
	}}

	data, _, err := get(t, tr, Config{}, "missing.txt")
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("got %v, expected *ServerError", err)
	}
	testutil.AssertEqual(t.Errorf, serr.Message, "File not found")
	testutil.AssertEqual(t.Errorf, err.Error(), "server error: File not found")
	testutil.AssertTrue(t.Errorf, data == nil, "content returned on error")
	checkSent(t, tr.sent, []sentPacket{rrq(t, "missing.txt")})
}

func TestServerErrorMidTransfer(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		errorFrom(transferAddr, "Disk read error"),
	}}

	data, _, err := get(t, tr, Config{}, "big")
	var serr *ServerError
	if !errors.As(err, &serr) || serr.Message != "Disk read error" {
		t.Fatalf("got %v, expected server error", err)
	}
	testutil.AssertTrue(t.Errorf, data == nil, "partial content returned")
}

func TestTimeoutExhaustion(t *testing.T) {
	tr := &fakeTransport{}

	_, obs, err := get(t, tr, Config{MaxRetries: 3, Timeout: time.Millisecond}, "silence")
	testutil.AssertErrorIs(t.Errorf, err, ErrTransferTimeout)

	req := rrq(t, "silence")
	checkSent(t, tr.sent, []sentPacket{req, req, req, req})

	var retransmits int
	for _, ev := range obs.events {
		if len(ev) > 10 && ev[:10] == "retransmit" {
			retransmits++
		}
	}
	testutil.AssertEqual(t.Errorf, retransmits, 3)
}

func TestTimeoutRetransmitsLastAck(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		timeout(),
		timeout(),
		dataFrom(transferAddr, 2, payload(1, 'b')),
	}}

	data, _, err := get(t, tr, Config{MaxRetries: 2}, "slow")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, len(data), 513)
	checkSent(t, tr.sent, []sentPacket{
		rrq(t, "slow"),
		ack(1, transferAddr),
		ack(1, transferAddr),
		ack(1, transferAddr),
		ack(2, transferAddr),
	})
}

func TestDataResetsTimeoutCount(t *testing.T) {
	// Two timeouts around each block never add up to three in a row.
	tr := &fakeTransport{script: []step{
		timeout(), timeout(),
		dataFrom(transferAddr, 1, payload(512, 'a')),
		timeout(), timeout(),
		dataFrom(transferAddr, 2, payload(512, 'b')),
		timeout(), timeout(),
		dataFrom(transferAddr, 3, payload(2, 'c')),
	}}

	data, _, err := get(t, tr, Config{MaxRetries: 2}, "flaky")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, len(data), 1026)
}

func TestMalformedDatagramsIgnored(t *testing.T) {
	tr := &fakeTransport{script: []step{
		{data: []byte{0}, from: strangerAddr},
		{data: []byte{0, 9, 1, 2}, from: strangerAddr},
		{data: append([]byte{0, 3, 0, 1}, payload(BlockSize+1, 'z')...), from: strangerAddr},
		timeout(),
		{data: []byte{0, 4, 0, 1}, from: strangerAddr},
		{data: []byte("\x00\x01x\x00netascii\x00"), from: strangerAddr},
		dataFrom(transferAddr, 1, []byte("ok")),
	}}

	data, obs, err := get(t, tr, Config{MaxRetries: 1}, "noisy")
	testutil.FatalErr(t, err)
	testutil.AssertEqual(t.Errorf, string(data), "ok")

	req := rrq(t, "noisy")
	checkSent(t, tr.sent, []sentPacket{req, req, ack(1, transferAddr)})

	var discarded int
	for _, ev := range obs.events {
		if len(ev) > 7 && ev[:7] == "discard" {
			discarded++
		}
	}
	testutil.AssertEqual(t.Errorf, discarded, 5)
}

func TestMalformedDoesNotResetTimeouts(t *testing.T) {
	tr := &fakeTransport{script: []step{
		timeout(),
		{data: []byte{0, 7}, from: serverAddr},
		timeout(),
	}}

	_, _, err := get(t, tr, Config{MaxRetries: 1}, "noisy")
	testutil.AssertErrorIs(t.Errorf, err, ErrTransferTimeout)
}

func TestNoiseDoesNotMoveEndpoint(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		{data: []byte{0xde, 0xad, 0xbe, 0xef}, from: strangerAddr},
		dataFrom(transferAddr, 2, []byte("end")),
	}}

	_, _, err := get(t, tr, Config{}, "f")
	testutil.FatalErr(t, err)
	checkSent(t, tr.sent, []sentPacket{rrq(t, "f"), ack(1, transferAddr), ack(2, transferAddr)})
}

func TestEndpointFollowsLatestSource(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, payload(512, 'a')),
		dataFrom(strangerAddr, 2, []byte("z")),
	}}

	_, obs, err := get(t, tr, Config{}, "f")
	testutil.FatalErr(t, err)
	checkSent(t, tr.sent, []sentPacket{rrq(t, "f"), ack(1, transferAddr), ack(2, strangerAddr)})
	testutil.AssertEqual(t.Errorf, obs.events[3], "server 127.0.0.1:50123 -> 127.0.0.1:50999")
}

func TestCancelledContext(t *testing.T) {
	tr := &fakeTransport{script: []step{
		dataFrom(transferAddr, 1, []byte("never read")),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(tr, Config{}, NopObserver{})
	data, err := c.Get(ctx, "f", "127.0.0.1", 69)
	testutil.AssertErrorIs(t.Errorf, err, context.Canceled)
	testutil.AssertTrue(t.Errorf, data == nil, "content returned on cancel")
	testutil.AssertTrue(t.Errorf, tr.closed, "transport not closed")
	checkSent(t, tr.sent, []sentPacket{rrq(t, "f")})
}

func TestEncodingErrorOpensNoSocket(t *testing.T) {
	var listens int
	c := NewClient(Config{}, WithListener(func() (Transport, error) {
		listens++
		return &fakeTransport{}, nil
	}))

	for _, name := range []string{"", "a\x00b", "naïve.txt"} {
		_, err := c.Get(context.Background(), name, "127.0.0.1", 69)
		testutil.AssertErrorIs(t.Errorf, err, ErrEncoding)
	}
	testutil.AssertEqual(t.Errorf, listens, 0)
}

func TestInvalidPort(t *testing.T) {
	tr := &fakeTransport{}
	c := newTestClient(tr, Config{}, NopObserver{})
	for _, port := range []int{0, -1, 65536} {
		if _, err := c.Get(context.Background(), "f", "127.0.0.1", port); err == nil {
			t.Errorf("port %d: expected error", port)
		}
	}
	testutil.AssertEqual(t.Errorf, len(tr.sent), 0)
}

func TestSendFailure(t *testing.T) {
	sendErr := errors.New("network unreachable")
	tr := &fakeTransport{sendErr: sendErr}

	_, _, err := get(t, tr, Config{}, "f")
	testutil.AssertErrorIs(t.Errorf, err, sendErr)
}

func TestReceiveFailure(t *testing.T) {
	recvErr := errors.New("socket closed")
	tr := &fakeTransport{script: []step{{err: recvErr}}}

	_, _, err := get(t, tr, Config{}, "f")
	testutil.AssertErrorIs(t.Errorf, err, recvErr)
}

func TestBlockNumberWraps(t *testing.T) {
	tr := &fakeTransport{}
	s := newSession("big", serverAddr, tr, Config{Timeout: time.Second, MaxRetries: 1}, NopObserver{})
	testutil.FatalErr(t, s.start([]byte{0, 1}))

	s.lastAck = 65535
	s.content.Write(payload(512, 'a'))

	s.handleDatagram(dataFrom(transferAddr, 65535, payload(512, 'x')).data, transferAddr)
	testutil.AssertEqual(t.Errorf, s.content.Len(), 512)
	testutil.AssertEqual(t.Errorf, s.state, StateAwaitingBlock)

	s.handleDatagram(dataFrom(transferAddr, 0, payload(512, 'b')).data, transferAddr)
	testutil.AssertEqual(t.Errorf, s.lastAck, uint16(0))
	testutil.AssertEqual(t.Errorf, s.content.Len(), 1024)

	s.handleDatagram(dataFrom(transferAddr, 1, payload(7, 'c')).data, transferAddr)
	testutil.AssertEqual(t.Errorf, s.lastAck, uint16(1))
	testutil.AssertEqual(t.Errorf, s.state, StateDone)
	testutil.AssertEqual(t.Errorf, s.content.Len(), 1031)

	checkSent(t, tr.sent, []sentPacket{
		{data: []byte{0, 1}, to: serverAddr.String()},
		ack(65535, transferAddr),
		ack(0, transferAddr),
		ack(1, transferAddr),
	})
}

func TestFinalAckSendFailureKeepsTransfer(t *testing.T) {
	tr := &fakeTransport{}
	obs := new(recordingObserver)
	s := newSession("f", serverAddr, tr, Config{Timeout: time.Second, MaxRetries: 1}, obs)
	testutil.FatalErr(t, s.start([]byte{0, 1}))

	s.handleDatagram(dataFrom(transferAddr, 1, payload(512, 'a')).data, transferAddr)
	tr.sendErr = errors.New("boom")
	s.handleDatagram(dataFrom(transferAddr, 2, []byte("done")).data, transferAddr)

	testutil.AssertEqual(t.Errorf, s.state, StateDone)
	testutil.FatalErr(t, s.err)
	testutil.AssertEqual(t.Errorf, s.content.Len(), 516)
	testutil.AssertEqual(t.Errorf, obs.events[len(obs.events)-1], "final ack 2 failed: boom")

	// The loop sees a finished session and returns the content.
	testutil.FatalErr(t, s.run(context.Background()))
}

func TestSendFailureMidTransfer(t *testing.T) {
	tr := &fakeTransport{}
	s := newSession("f", serverAddr, tr, Config{Timeout: time.Second, MaxRetries: 1}, NopObserver{})
	testutil.FatalErr(t, s.start([]byte{0, 1}))

	tr.sendErr = errors.New("boom")
	s.handleDatagram(dataFrom(transferAddr, 1, payload(512, 'a')).data, transferAddr)
	testutil.AssertEqual(t.Errorf, s.state, StateFailed)
	testutil.AssertErrorIs(t.Errorf, s.err, tr.sendErr)
}

func TestSessionStartTwice(t *testing.T) {
	s := newSession("f", serverAddr, &fakeTransport{}, Config{}, NopObserver{})
	testutil.FatalErr(t, s.start([]byte{0, 1}))
	if err := s.start([]byte{0, 1}); err == nil {
		t.Error("expected error starting a session twice")
	}
}

func TestStateString(t *testing.T) {
	testutil.AssertEqual(t.Errorf, StateAwaitingBlock.String(), "awaiting-block")
	testutil.AssertEqual(t.Errorf, State(42).String(), "State(42)")
}
