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
// command that starts the ingestion and re-processing workflows: it turns
// the raw Cloud Storage notification into a new Media record.
//
// Logic Flow:
//  1. Reads the raw JSON payload from the trigger key.
//  2. Unmarshals it into a GCSPubSubNotification and requires bucket and name.
//  3. Creates a Media whose id is derived from the object name and whose
//     source URL is `<scheme>bucket/name`.
//  4. Stores the Media and a GCSObject (bucket, name, content type).
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// MediaTriggerReader parses a storage notification into a Media.
type MediaTriggerReader struct {
	cor.BaseCommand
	scheme     string
	triggerKey cor.Key[string]
	mediaKey   cor.Key[*model.Media]
}

// NewMediaTriggerReader creates the trigger reader. scheme is the object URL
// scheme of the produced source URL ("gs://" when empty).
func NewMediaTriggerReader(name string, scheme string, triggerKey cor.Key[string], mediaKey cor.Key[*model.Media]) *MediaTriggerReader {
	if scheme == "" {
		scheme = cloud.DefaultObjectURLScheme
	}
	return &MediaTriggerReader{
		BaseCommand: *cor.NewBaseCommand(name),
		scheme:      scheme,
		triggerKey:  triggerKey,
		mediaKey:    mediaKey,
	}
}

// IsExecutable requires a trigger payload.
func (c *MediaTriggerReader) IsExecutable(context cor.Context) bool {
	return c.triggerKey.Present(context)
}

func (c *MediaTriggerReader) Execute(context cor.Context) error {
	in, ok := c.triggerKey.Get(context)
	if !ok {
		return fmt.Errorf("missing trigger payload under %q", c.triggerKey.Name())
	}

	obj, err := ParseTrigger(in)
	if err != nil {
		return err
	}

	media := model.NewMedia(obj.Name)
	media.MediaUrl = cloud.NewObjectURL(c.scheme, obj.Bucket, obj.Name)

	c.mediaKey.Set(context, media)
	GCSObjectKey.Set(context, obj)
	return nil
}

// ParseTrigger decodes a storage notification and checks that it names an
// object.
func ParseTrigger(payload string) (*cloud.GCSObject, error) {
	var n cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GCS notification: %w", err)
	}
	if n.Bucket == "" || n.Name == "" {
		return nil, fmt.Errorf("notification is missing bucket or name (bucket=%q, name=%q)", n.Bucket, n.Name)
	}
	return &cloud.GCSObject{Bucket: n.Bucket, Name: n.Name, MIMEType: n.ContentType, Generation: n.Generation}, nil
}
