// Copyright (C) 2025 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package storage persists completed transfers to a gocloud.dev blob
// bucket: a local directory, memory, S3, GCS or Azure Blob Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/syncthing/sttftp/internal/slogutil"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 250 * time.Millisecond
)

var ErrInvalidName = errors.New("invalid object name")

type Options struct {
	// Attempts is the total number of tries for a write. Zero means
	// DefaultAttempts.
	Attempts uint
	// Delay is the pause between tries. Zero means DefaultDelay.
	Delay time.Duration
}

func (o *Options) prepare() {
	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
}

// The subset of *blob.Bucket we use.
type objectStore interface {
	WriteAll(ctx context.Context, key string, p []byte, opts *blob.WriterOptions) error
	ReadAll(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Bucket writes whole objects, retrying failed writes.
type Bucket struct {
	url   string
	store objectStore
	opts  Options
}

// Open opens the bucket at the given URL, for example
// "file:///srv/tftp", "mem://" or "s3://bucket?region=eu-north-1".
func Open(ctx context.Context, url string, opts Options) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening bucket: %w", err)
	}
	return newBucket(url, b, opts), nil
}

func newBucket(url string, store objectStore, opts Options) *Bucket {
	opts.prepare()
	return &Bucket{
		url:   url,
		store: store,
		opts:  opts,
	}
}

// DirURL returns the bucket URL for a local directory, which is created
// on first write if needed.
func DirURL(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "create_dir=true&metadata=skip",
	}
	return u.String(), nil
}

// WriteAll stores data as a single object. The name is cleaned so that it
// cannot escape the bucket.
func (b *Bucket) WriteAll(ctx context.Context, name string, data []byte) error {
	key, err := objectKey(name)
	if err != nil {
		return err
	}

	attempt := 0
	err = retry.New(
		retry.Attempts(b.opts.Attempts),
		retry.Delay(b.opts.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		attempt++
		err := b.store.WriteAll(ctx, key, data, nil)
		if err != nil {
			slog.Debug("Write failed", slogutil.FilePath(key), slog.Int("attempt", attempt), slog.Any("code", gcerrors.Code(err)), slogutil.Error(err))
		}
		return err
	})
	if err != nil {
		metricWrites.WithLabelValues(resultFailed).Inc()
		return fmt.Errorf("writing %s after %d attempts: %w", key, attempt, err)
	}

	metricWrites.WithLabelValues(resultSuccess).Inc()
	metricWrittenBytes.Add(float64(len(data)))
	slog.Info("Saved file", slogutil.FilePath(key), slog.Int("size", len(data)), slog.String("bucket", b.url))
	return nil
}

// ReadAll returns the contents of a previously written object.
func (b *Bucket) ReadAll(ctx context.Context, name string) ([]byte, error) {
	key, err := objectKey(name)
	if err != nil {
		return nil, err
	}
	return b.store.ReadAll(ctx, key)
}

func (b *Bucket) Close() error {
	return b.store.Close()
}

func (b *Bucket) String() string {
	return b.url
}

// objectKey maps a requested file name to a bucket key, dropping any
// leading slashes and parent references.
func objectKey(name string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return key, nil
}
