// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "storage",
		Name:      "writes_total",
		Help:      "Total number of object writes, by result",
	}, []string{"result"})
	metricWrittenBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sttftp",
		Subsystem: "storage",
		Name:      "written_bytes_total",
		Help:      "Total amount of data written to the bucket",
	})
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
)

func init() {
	metricWrites.WithLabelValues(resultSuccess)
	metricWrites.WithLabelValues(resultFailed)
}
