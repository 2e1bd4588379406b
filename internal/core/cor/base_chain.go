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
// for creating workflows as a sequence of commands. This file defines the
// `BaseChain`, which is the default implementation of the `Chain` interface.
//
// Logic Flow:
//  1. **Execution starts**: The `Execute` method is called with a shared context.
//  2. **Telemetry**: A span is created for the whole chain and a child span for
//     every command that runs.
//  3. **Halt check**: Before each command the context is checked for errors; once
//     the ledger is non-empty nothing else in the chain runs.
//  4. **Gate**: A command whose `IsExecutable` returns false is skipped. It is
//     neither a success nor a failure and leaves no entry in the ledger.
//  5. **Execution**: The command runs with the Go context of its own span. A
//     returned error is recorded under the command's name and the loop stops.
//  6. **Completion**: The chain span status reflects the final ledger.
package cor

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface. It holds a slice
// of commands to be executed sequentially.
type BaseChain struct {
	BaseCommand
	commands []Command // The ordered list of commands that this chain will execute.
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: A string name for this chain instance, used for logging and telemetry.
//
// Outputs:
//   - *BaseChain: A pointer to the newly instantiated chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// AddCommand is a builder method that adds a command to the end of the chain's
// execution sequence.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// GetCommands returns the commands in execution order.
func (c *BaseChain) GetCommands() []Command {
	return c.commands
}

// Execute runs the commands in order against chCtx. Failures never escape
// this boundary: they are recorded in the context's ledger, which the caller
// inspects with HasErrors. Execute therefore always returns nil, which keeps
// a nested chain from being recorded a second time by its parent.
func (c *BaseChain) Execute(chCtx Context) error {
	parentCtx := chCtx.GetContext()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	defer chCtx.SetContext(parentCtx)

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		if chCtx.HasErrors() {
			break
		}

		if !command.IsExecutable(chCtx) {
			slog.DebugContext(outerCtx, "skipping command", "chain", c.GetName(), "command", command.GetName())
			continue
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		chCtx.SetContext(commandContext)
		err := command.Execute(chCtx)
		chCtx.SetContext(outerCtx)

		if err != nil {
			chCtx.AddError(command.GetName(), err)
			command.GetErrorCounter().Add(outerCtx, 1)
			commandSpan.RecordError(err)
			commandSpan.SetStatus(codes.Error, err.Error())
			commandSpan.End()
			slog.ErrorContext(outerCtx, "command failed", "chain", c.GetName(), "command", command.GetName(), "error", err)
			break
		}

		if chCtx.HasErrors() {
			// a nested chain recorded its own failure
			commandSpan.SetStatus(codes.Error, "nested command failed")
			commandSpan.End()
			break
		}

		command.GetSuccessCounter().Add(outerCtx, 1)
		commandSpan.SetStatus(codes.Ok, "command completed successfully")
		commandSpan.End()
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	} else {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	}
	return nil
}
