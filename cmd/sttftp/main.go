// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command sttftp fetches a single file from a TFTP server and saves it to a
// local directory or a cloud bucket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/syncthing/sttftp/internal/slogutil"
	"github.com/syncthing/sttftp/lib/build"
	"github.com/syncthing/sttftp/lib/storage"
	"github.com/syncthing/sttftp/lib/tftp"
)

const (
	exitSuccess        = 0
	exitTransferFailed = 1
	exitSaveFailed     = 2
)

type CLI struct {
	Filename      string           `arg:"" help:"Name of the file to fetch"`
	Host          string           `short:"H" help:"TFTP server host" default:"localhost" env:"STTFTP_HOST"`
	Port          int              `short:"p" help:"TFTP server port" default:"69" env:"STTFTP_PORT"`
	Output        string           `short:"o" help:"Destination directory or bucket URL (file://, mem://, s3://, gs://, azblob://)" default:"." env:"STTFTP_OUTPUT" placeholder:"DIR|URL"`
	Timeout       time.Duration    `help:"Time to wait for each packet before retransmitting" default:"1s" env:"STTFTP_TIMEOUT"`
	Retries       int              `help:"Consecutive timeouts tolerated before giving up" default:"5" env:"STTFTP_RETRIES"`
	Netascii      bool             `help:"Translate netascii line endings before saving"`
	WriteAttempts uint             `help:"Attempts at writing the file to the destination" default:"3"`
	MetricsFile   string           `help:"Write Prometheus metrics to this file on exit" placeholder:"PATH" env:"STTFTP_METRICS_FILE"`
	LogLevel      string           `help:"Default log level; use STTRACE for per package levels" default:"INFO" enum:"DEBUG,INFO,WARN,ERROR" env:"STTFTP_LOG_LEVEL"`
	LogSyslog     bool             `help:"Prefix log lines with a syslog priority instead of a timestamp, for journald" env:"STTFTP_LOG_SYSLOG"`
	Version       kong.VersionFlag `help:"Show version and exit"`
}

func (c *CLI) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Retries < 1 {
		return errors.New("retries must be at least one")
	}
	if c.WriteAttempts < 1 {
		return errors.New("write attempts must be at least one")
	}
	return nil
}

// bucketURL returns the output as a bucket URL; plain paths become file
// URLs.
func (c *CLI) bucketURL() (string, error) {
	if strings.Contains(c.Output, "://") {
		return c.Output, nil
	}
	return storage.DirURL(c.Output)
}

func main() {
	var params CLI
	kong.Parse(&params,
		kong.Description("Fetch a file from a TFTP server."),
		kong.Vars{"version": build.LongVersionFor("sttftp")},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := run(ctx, &params)
	cancel()
	os.Exit(status)
}

func setupLogging(params *CLI) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(params.LogLevel)); err == nil {
		slogutil.SetDefaultLevel(level)
	}
	if params.LogSyslog {
		slogutil.SetLineFormat(slogutil.LineFormat{LevelSyslog: true})
	}
}

func run(ctx context.Context, params *CLI) int {
	setupLogging(params)
	if err := build.CheckVersion(); err != nil {
		slog.Warn("Unexpected build version", slogutil.Error(err))
	}

	if params.MetricsFile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(params.MetricsFile, prometheus.DefaultGatherer); err != nil {
				slog.Error("Failed to write metrics", slogutil.FilePath(params.MetricsFile), slogutil.Error(err))
			}
		}()
	}

	url, err := params.bucketURL()
	if err != nil {
		slog.Error("Invalid output location", slog.String("output", params.Output), slogutil.Error(err))
		return exitSaveFailed
	}
	bucket, err := storage.Open(ctx, url, storage.Options{Attempts: params.WriteAttempts})
	if err != nil {
		slog.Error("Failed to open output", slog.String("output", params.Output), slogutil.Error(err))
		return exitSaveFailed
	}
	defer bucket.Close()

	client := tftp.NewClient(tftp.Config{
		Timeout:        params.Timeout,
		MaxRetries:     params.Retries,
		DecodeNetascii: params.Netascii,
	},
		tftp.WithSink(bucket),
		tftp.WithObserver(tftp.Observers{
			tftp.NewLogObserver(slog.Default()),
			tftp.MetricsObserver{},
		}),
	)

	err = client.PerformTransfer(ctx, params.Filename, params.Host, params.Port)
	if err != nil {
		slog.Error("Failed to fetch file", slog.String("file", params.Filename), slogutil.Error(err))
	}
	return exitStatusFor(err)
}

func exitStatusFor(err error) int {
	var saveErr *tftp.SaveError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &saveErr):
		return exitSaveFailed
	default:
		return exitTransferFailed
	}
}
