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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// cleanup step that ends the ingestion and resize workflows.
//
// Logic Flow:
//  1. Reads every configured path key from the context; absent keys are skipped.
//  2. Removes each file. A file that is already gone counts as removed.
//  3. Logs any other removal failure and moves on, so cleanup never fails a
//     run that has already persisted its results.
package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

// MediaCleanup removes the local files whose paths are stored under its keys.
// It never fails the run: a file that cannot be removed is logged and left
// for Context.Close.
type MediaCleanup struct {
	cor.BaseCommand
	keys []cor.Key[string]
}

// NewMediaCleanup creates the cleanup step. At least one key is required;
// a cleanup with nothing to clean is a wiring mistake and panics.
func NewMediaCleanup(name string, keys ...cor.Key[string]) *MediaCleanup {
	if len(keys) == 0 {
		panic("commands: NewMediaCleanup requires at least one path key")
	}
	return &MediaCleanup{BaseCommand: *cor.NewBaseCommand(name), keys: keys}
}

func (v *MediaCleanup) Execute(context cor.Context) error {
	for _, key := range v.keys {
		path, ok := key.Get(context)
		if !ok || path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(context.GetContext(), "failed to remove temporary file", "key", key.Name(), "file", path, "error", err)
			continue
		}
		slog.DebugContext(context.GetContext(), "removed temporary file", "key", key.Name(), "file", path)
	}
	return nil
}
