// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger keeps a record of the Pub/Sub events whose workflow
// completed, so a redelivered notification of the same upload is
// acknowledged instead of processed twice. Records live in BadgerDB, either
// on disk or in memory, and expire after a configurable TTL.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
)

const keyPrefix = "processed/"

var (
	// ErrDisabled is returned by Open when the configuration names neither a
	// path nor in-memory storage.
	ErrDisabled = errors.New("ledger disabled")
	// ErrNotRecorded is returned by RecordedAt for an unknown or expired key.
	ErrNotRecorded = errors.New("event not recorded")
)

var _ cloud.RunLedger = (*Ledger)(nil)

// Ledger is a cloud.RunLedger backed by BadgerDB.
type Ledger struct {
	db  *badger.DB
	ttl time.Duration
}

// slogAdapter routes badger's logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the ledger described by config.
//
// Inputs:
//   - config: The ledger section. InMemory wins over Path; TTLSeconds <= 0
//     keeps records forever.
//
// Outputs:
//   - *Ledger: The open ledger. The caller must Close it.
//   - error: ErrDisabled when neither storage option is set, or the open error.
func Open(config cloud.Ledger) (*Ledger, error) {
	var opts badger.Options
	switch {
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case config.Path != "":
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create ledger directory %s: %w", config.Path, err)
		}
		opts = badger.DefaultOptions(config.Path)
	default:
		return nil, ErrDisabled
	}
	opts.Logger = &slogAdapter{logger: slog.Default().With("component", "ledger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, ttl: time.Duration(config.TTLSeconds) * time.Second}, nil
}

// Seen reports whether key was recorded and has not expired.
func (l *Ledger) Seen(key string) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record marks key as processed at the current time.
func (l *Ledger) Record(key string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		stamp, err := time.Now().UTC().MarshalText()
		if err != nil {
			return err
		}
		e := badger.NewEntry([]byte(keyPrefix+key), stamp)
		if l.ttl > 0 {
			e = e.WithTTL(l.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Forget removes key, so the next delivery of the event is processed again.
func (l *Ledger) Forget(key string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// RecordedAt returns when key was recorded.
func (l *Ledger) RecordedAt(key string) (time.Time, error) {
	var at time.Time
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotRecorded
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return at.UnmarshalText(val)
		})
	})
	return at, err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
