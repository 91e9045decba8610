// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package tftp

import (
	"context"
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "transfers_total",
		Help:      "Total number of transfers, by result",
	}, []string{"result"})
	metricBlocksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "blocks_received_total",
		Help:      "Total number of data blocks accepted",
	})
	metricBlocksIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "blocks_ignored_total",
		Help:      "Total number of duplicate or out of sequence data blocks",
	})
	metricRetransmits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "retransmits_total",
		Help:      "Total number of retransmissions after a receive timeout",
	})
	metricPacketsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "packets_discarded_total",
		Help:      "Total number of received datagrams that were not usable",
	})
	metricFinalAckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "final_ack_failures_total",
		Help:      "Total number of completed transfers whose last ack could not be sent",
	})
	metricReceivedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "tftp",
		Name:      "received_bytes_total",
		Help:      "Total amount of payload data accepted",
	})
)

const (
	resultSuccess     = "success"
	resultServerError = "server_error"
	resultTimeout     = "timeout"
	resultCancelled   = "cancelled"
	resultFailed      = "failed"
)

func init() {
	// Make all results visible even before the first transfer.
	for _, r := range []string{resultSuccess, resultServerError, resultTimeout, resultCancelled, resultFailed} {
		metricTransfers.WithLabelValues(r)
	}
}

// MetricsObserver records session events in the package's Prometheus
// metrics.
type MetricsObserver struct{}

var _ Observer = MetricsObserver{}

func (MetricsObserver) RequestSent(string, net.Addr) {}
func (MetricsObserver) ServerChanged(_, _ net.Addr)  {}

func (MetricsObserver) BlockAccepted(_ uint16, size int) {
	metricBlocksReceived.Inc()
	metricReceivedBytes.Add(float64(size))
}

func (MetricsObserver) BlockIgnored(_, _ uint16) {
	metricBlocksIgnored.Inc()
}

func (MetricsObserver) Retransmit(int) {
	metricRetransmits.Inc()
}

func (MetricsObserver) PacketDiscarded(net.Addr, []byte, error) {
	metricPacketsDiscarded.Inc()
}

func (MetricsObserver) FinalAckFailed(uint16, error) {
	metricFinalAckFailures.Inc()
}

func (MetricsObserver) TransferDone(_ string, _ int, err error) {
	metricTransfers.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var serr *ServerError
	switch {
	case err == nil:
		return resultSuccess
	case errors.As(err, &serr):
		return resultServerError
	case errors.Is(err, ErrTransferTimeout):
		return resultTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resultCancelled
	default:
		return resultFailed
	}
}
