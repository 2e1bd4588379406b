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
// downloader: it copies the object referenced by a Media's source URL to a
// run-unique local temp file, which the transcoder then reads.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// GCSToTempFile downloads a Media's source object to a temp file.
type GCSToTempFile struct {
	cor.BaseCommand
	objects        cloud.ObjectStore
	tempFilePrefix string // Prefix of the temp file name (e.g., "media-download-").
	mediaKey       cor.Key[*model.Media]
	pathKey        cor.Key[string]
}

// NewGCSToTempFile creates the downloader reading the Media under mediaKey and
// writing the local path under pathKey.
func NewGCSToTempFile(name string, objects cloud.ObjectStore, tempFilePrefix string, mediaKey cor.Key[*model.Media], pathKey cor.Key[string]) *GCSToTempFile {
	return &GCSToTempFile{
		BaseCommand:    *cor.NewBaseCommand(name),
		objects:        objects,
		tempFilePrefix: tempFilePrefix,
		mediaKey:       mediaKey,
		pathKey:        pathKey,
	}
}

func (c *GCSToTempFile) IsExecutable(context cor.Context) bool {
	return c.mediaKey.Present(context)
}

func (c *GCSToTempFile) Execute(context cor.Context) error {
	media, ok := c.mediaKey.Get(context)
	if !ok || media == nil {
		return fmt.Errorf("missing media under %q", c.mediaKey.Name())
	}

	bucket, object, err := cloud.ParseObjectURL(media.MediaUrl)
	if err != nil {
		return err
	}

	reader, err := c.objects.NewReader(context.GetContext(), bucket, object)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", media.MediaUrl, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.WarnContext(context.GetContext(), "failed to close object reader", "url", media.MediaUrl, "error", err)
		}
	}()

	// The random part of the name keeps concurrent runs apart; the extension
	// is kept for the transcoder.
	tempFile, err := os.CreateTemp("", c.tempFilePrefix+"*"+filepath.Ext(object))
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	context.AddTempFile(tempFile.Name())

	written, err := io.Copy(tempFile, reader)
	closeErr := tempFile.Close()
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s after %d bytes: %w", media.MediaUrl, tempFile.Name(), written, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", tempFile.Name(), closeErr)
	}

	slog.InfoContext(context.GetContext(), "downloaded object", "url", media.MediaUrl, "file", tempFile.Name(), "bytes", written)
	c.pathKey.Set(context, tempFile.Name())
	return nil
}
