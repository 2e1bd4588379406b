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

package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T, ttl int) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(cloud.Ledger{InMemory: true, TTLSeconds: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndSeen(t *testing.T) {
	l := openInMemory(t, 3600)

	seen, err := l.Seen("LowResTopic/bucket/a.mp4#1")
	require.NoError(t, err)
	assert.False(t, seen)

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, l.Record("LowResTopic/bucket/a.mp4#1"))

	seen, err = l.Seen("LowResTopic/bucket/a.mp4#1")
	require.NoError(t, err)
	assert.True(t, seen)

	// another generation of the same object is a different event
	seen, err = l.Seen("LowResTopic/bucket/a.mp4#2")
	require.NoError(t, err)
	assert.False(t, seen)

	at, err := l.RecordedAt("LowResTopic/bucket/a.mp4#1")
	require.NoError(t, err)
	assert.True(t, at.After(before))
}

func TestForget(t *testing.T) {
	l := openInMemory(t, 0)
	require.NoError(t, l.Record("k"))
	require.NoError(t, l.Forget("k"))

	seen, err := l.Seen("k")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = l.RecordedAt("k")
	assert.True(t, errors.Is(err, ledger.ErrNotRecorded))
}

func TestOnDiskLedgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(cloud.Ledger{Path: dir})
	require.NoError(t, err)
	require.NoError(t, l.Record("HiResTopic/message/42"))
	require.NoError(t, l.Close())

	l, err = ledger.Open(cloud.Ledger{Path: dir})
	require.NoError(t, err)
	defer l.Close()
	seen, err := l.Seen("HiResTopic/message/42")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestOpenDisabled(t *testing.T) {
	_, err := ledger.Open(cloud.Ledger{})
	assert.ErrorIs(t, err, ledger.ErrDisabled)
}
