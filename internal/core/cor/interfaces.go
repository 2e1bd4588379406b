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
// for creating workflows. This file defines the core interfaces that govern the
// behavior of all components within this pattern: a per-run Context, a gated
// unit of work (Command) and an ordered, halt-on-first-failure sequence of
// commands (Chain).
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Context defines the interface for the shared state object that is passed
// through a chain of commands. It is scoped to a single workflow run and
// carries data, the error ledger and the temp files created along the way.
// A Context is used by exactly one sequential execution at a time and is not
// safe for concurrent use.
type Context interface {
	// SetContext sets the standard Go `context.Context`. The chain swaps it
	// for every command so external calls are traced under that command's span.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go `context.Context`.
	GetContext() context.Context

	// Add stores a value under key, overwriting any previous value. It returns
	// the Context to allow for fluent method chaining.
	Add(key string, value interface{}) Context

	// AddError records the error raised by the named command. The last write
	// for a given name wins.
	AddError(key string, err error)

	// GetErrors returns the error ledger keyed by command name.
	GetErrors() map[string]error

	// Get retrieves a value from the context by its key, or nil when absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair from the context.
	Remove(key string)

	// HasErrors reports whether any error has been recorded.
	HasErrors() bool

	// AddTempFile tracks a temporary file that was created during the run.
	AddTempFile(file string)

	// GetTempFiles returns a list of all tracked temporary file paths.
	GetTempFiles() []string

	// Close deletes any tracked temporary file still present on disk. Callers
	// defer it right after creating the context.
	Close()
}

// Executable is a simple interface for any object that has a core execution logic.
type Executable interface {
	// Execute performs the unit of work, reading its inputs from and writing
	// its outputs to the Context. A non-nil error is a failure of this unit.
	Execute(context Context) error
}

// Command represents an atomic, testable unit of work. It is the fundamental
// building block of a workflow. Commands are stateless across runs; whatever
// they are configured with (keys, clients) is fixed at construction.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for the error
	// ledger, logging and telemetry.
	GetName() string

	// IsExecutable is the gate predicate. It must not mutate the Context. A
	// command that is not executable is skipped silently.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for creating metrics.
	GetMeter() metric.Meter

	// GetSuccessCounter returns a metric counter for successful executions.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns a metric counter for failed executions.
	GetErrorCounter() metric.Int64Counter
}

// Chain represents a sequence of commands. It is itself a Command, which allows
// chains to be nested within other chains.
type Chain interface {
	Command

	// AddCommand adds a new command to the end of the execution sequence.
	AddCommand(command Command) Chain

	// GetCommands returns the commands in execution order.
	GetCommands() []Command
}
