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

package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestHandlerUsesCloudLoggingFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(telemetry.NewHandler(buf, slog.LevelInfo))

	logger.Warn("ledger lookup failed", "key", "k")
	record := decode(t, buf)
	assert.Equal(t, "WARNING", record["severity"])
	assert.Equal(t, "ledger lookup failed", record["message"])
	assert.Contains(t, record, "timestamp")
	assert.NotContains(t, record, "level")
	assert.NotContains(t, record, telemetry.TraceKey)
}

func TestHandlerDropsRecordsBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(telemetry.NewHandler(buf, slog.LevelInfo))
	logger.Debug("noise")
	assert.Zero(t, buf.Len())
}

func TestHandlerAddsSpanContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	buf := &bytes.Buffer{}
	logger := slog.New(telemetry.NewHandler(buf, slog.LevelInfo)).With("listener", "LowResTopic")
	logger.InfoContext(ctx, "listening")

	record := decode(t, buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), record[telemetry.TraceKey])
	assert.Equal(t, span.SpanContext().SpanID().String(), record[telemetry.SpanIDKey])
	assert.Equal(t, true, record[telemetry.TraceSampledKey])
	assert.Equal(t, "LowResTopic", record["listener"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, telemetry.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, telemetry.ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, telemetry.ParseLevel("verbose"))
}
