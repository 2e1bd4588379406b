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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines `BaseCommand`, the foundational
// implementation of the `Command` interface.
//
// Every command in the system embeds `BaseCommand` to inherit:
//   - A name for identification in the error ledger, logs and telemetry.
//   - Built-in OpenTelemetry tracing (`Tracer`) and metrics (`Meter`, counters).
//   - The default gate, which always allows execution.
package cor

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope shared by all command metrics.
const MeterName = "github.com/jaycherian/gcp-go-media-pipeline"

// BaseCommand is the default implementation of the Command interface, minus
// Execute, which every concrete command provides.
type BaseCommand struct {
	Name           string              // A unique name for the command, used for tracing and metrics.
	Tracer         trace.Tracer        // An OpenTelemetry tracer for creating spans.
	Meter          metric.Meter        // An OpenTelemetry meter for creating metrics.
	SuccessCounter metric.Int64Counter // Incremented by the chain on successful execution.
	ErrorCounter   metric.Int64Counter // Incremented by the chain when the command fails.
}

// NewBaseCommand is the constructor for BaseCommand. It initializes a command
// with a name and sets up its OpenTelemetry instrumentation from the global
// providers.
//
// Inputs:
//   - name: The string name for this command.
//
// Outputs:
//   - *BaseCommand: A pointer to the newly instantiated command.
func NewBaseCommand(name string) *BaseCommand {
	meter := otel.Meter(MeterName)

	var successCounter metric.Int64Counter
	successCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		slog.Warn("error creating success counter", "command", name, "error", err)
		successCounter = noop.Int64Counter{}
	}
	var errorCounter metric.Int64Counter
	errorCounter, err = meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Warn("error creating error counter", "command", name, "error", err)
		errorCounter = noop.Int64Counter{}
	}

	return &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: successCounter,
		ErrorCounter:   errorCounter,
	}
}

// GetName returns the name of the command.
func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable is the default gate: a command is always eligible. Commands
// that depend on optional context entries override it.
func (c *BaseCommand) IsExecutable(_ Context) bool {
	return true
}

// GetTracer returns the OpenTelemetry Tracer for this command.
func (c *BaseCommand) GetTracer() trace.Tracer {
	return c.Tracer
}

// GetMeter returns the OpenTelemetry Meter for this command.
func (c *BaseCommand) GetMeter() metric.Meter {
	return c.Meter
}

// GetSuccessCounter returns the success metric counter for this command.
func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter {
	return c.SuccessCounter
}

// GetErrorCounter returns the error metric counter for this command.
func (c *BaseCommand) GetErrorCounter() metric.Int64Counter {
	return c.ErrorCounter
}
