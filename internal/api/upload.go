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

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
)

// sniffLength is the number of leading bytes filetype needs to match.
const sniffLength = 262

// FileUpload sets up the route for handling file uploads. Every part of the
// "files" field is streamed to the high resolution bucket under its base
// name, which triggers the resize workflow.
func (h *Handlers) FileUpload(r *gin.RouterGroup) {
	upload := r.Group("/uploads")
	{
		upload.POST("", func(c *gin.Context) {
			form, err := c.MultipartForm()
			if err != nil {
				c.String(http.StatusBadRequest, "get form err: %s", err.Error())
				return
			}
			files := form.File["files"]
			if len(files) == 0 {
				c.String(http.StatusBadRequest, "no files in field %q", "files")
				return
			}
			for _, file := range files {
				written, err := h.store(c, file)
				if err != nil {
					slog.ErrorContext(c.Request.Context(), "upload failed", "file", file.Filename, "error", err)
					c.String(http.StatusInternalServerError, "write file to bucket err: %s", err.Error())
					return
				}
				h.stats.Uploads.Add(1)
				h.stats.UploadedBytes.Add(written)
			}
			c.String(http.StatusOK, "Uploaded successfully %d files.", len(files))
		})
	}
}

// store copies one part to the bucket without staging it on disk.
func (h *Handlers) store(c *gin.Context, file *multipart.FileHeader) (int64, error) {
	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		return 0, fmt.Errorf("invalid file name %q", file.Filename)
	}
	src, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return h.storeObject(c.Request.Context(), name, src)
}

// storeObject streams src to the upload bucket under name. A failed read
// cancels the write so the truncated object is never committed.
func (h *Handlers) storeObject(ctx context.Context, name string, src io.Reader) (int64, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	head = head[:n]
	contentType := "application/octet-stream"
	if kind, _ := filetype.Match(head); kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := h.Objects.NewWriter(writeCtx, h.UploadBucket, name, contentType)
	written, err := io.Copy(w, io.MultiReader(bytes.NewReader(head), src))
	if err != nil {
		cancel()
		_ = w.Close()
		return written, err
	}
	if err := w.Close(); err != nil {
		return written, err
	}
	slog.InfoContext(ctx, "stored upload", "bucket", h.UploadBucket, "object", name, "content_type", contentType, "bytes", written)
	return written, nil
}
