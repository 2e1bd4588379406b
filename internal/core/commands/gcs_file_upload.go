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
// uploader, which copies a local file (typically transcoder output) into a
// Cloud Storage bucket.
//
// Logic Flow:
//  1. Reads the local file path from the context.
//  2. Resolves the destination object name from the context, falling back to
//     the local file's base name when none was provided.
//  3. Sniffs the content type from the file header.
//  4. Streams the file to the bucket. A failed copy cancels the write so no
//     partial object is committed.
package commands

import (
	goctx "context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
)

// GCSFileUpload is a command that uploads a local file to GCS.
type GCSFileUpload struct {
	cor.BaseCommand
	objects cloud.ObjectStore
	bucket  string // The name of the destination GCS bucket.
	pathKey cor.Key[string]
	nameKey cor.Key[string]
}

// NewGCSFileUpload is the constructor for the uploader. nameKey holds the
// optional destination object name.
func NewGCSFileUpload(name string, objects cloud.ObjectStore, bucket string, pathKey cor.Key[string], nameKey cor.Key[string]) *GCSFileUpload {
	return &GCSFileUpload{BaseCommand: *cor.NewBaseCommand(name), objects: objects, bucket: bucket, pathKey: pathKey, nameKey: nameKey}
}

func (c *GCSFileUpload) IsExecutable(context cor.Context) bool {
	return c.pathKey.Present(context)
}

func (c *GCSFileUpload) Execute(context cor.Context) error {
	path, ok := c.pathKey.Get(context)
	if !ok || path == "" {
		return fmt.Errorf("missing local file under %q", c.pathKey.Name())
	}
	destination, ok := c.nameKey.Get(context)
	if !ok || destination == "" {
		destination = filepath.Base(path)
	}

	dat, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer dat.Close()

	writeCtx, cancel := goctx.WithCancel(context.GetContext())
	defer cancel()

	writer := c.objects.NewWriter(writeCtx, c.bucket, destination, ContentTypeOf(path))
	written, err := io.Copy(writer, dat)
	if err != nil {
		cancel()
		_ = writer.Close()
		return fmt.Errorf("failed to copy %s to gs://%s/%s after %d bytes: %w", path, c.bucket, destination, written, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to commit gs://%s/%s: %w", c.bucket, destination, err)
	}

	slog.InfoContext(context.GetContext(), "uploaded file", "file", path, "bucket", c.bucket, "object", destination, "bytes", written)
	return nil
}

// ContentTypeOf returns the MIME type detected from the file header, or an
// empty string when it is not recognized.
func ContentTypeOf(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
