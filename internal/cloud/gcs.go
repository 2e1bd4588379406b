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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines the Cloud Storage side of the pipeline:
//
// Structs:
//   - GCSPubSubNotification: Maps to the JSON payload from GCS event notifications.
//   - GCSObject: A simplified internal model for GCS objects used in processing workflows.
//   - GCSObjectStore: The ObjectStore backed by a storage.Client.
//
// Functions:
//   - NewObjectURL, ParseObjectURL: Build and decompose `<scheme>bucket/name` references.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// DefaultObjectURLScheme is the Cloud Storage URI scheme. Vertex AI accepts
// file parts referenced this way.
const DefaultObjectURLScheme = "gs://"

// ErrMalformedObjectURL is returned when an object reference cannot be split
// into a bucket and an object name.
var ErrMalformedObjectURL = errors.New("malformed object url")

// GCSPubSubNotification is the JSON payload of a Cloud Storage object
// notification delivered through Pub/Sub.
type GCSPubSubNotification struct {
	Kind           string                 `json:"kind"`
	ID             string                 `json:"id"`
	SelfLink       string                 `json:"selfLink"`
	Name           string                 `json:"name"`
	Bucket         string                 `json:"bucket"`
	Generation     string                 `json:"generation"`
	MetaGeneration string                 `json:"metageneration"`
	ContentType    string                 `json:"contentType"`
	TimeCreated    string                 `json:"timeCreated"`
	Updated        string                 `json:"updated"`
	StorageClass   string                 `json:"storageClass"`
	Size           string                 `json:"size"`
	MD5Hash        string                 `json:"md5Hash"`
	MediaLink      string                 `json:"mediaLink"`
	MetaData       map[string]interface{} `json:"metadata"`
	Crc32c         string                 `json:"crc32c"`
	ETag           string                 `json:"etag"`
}

// GCSObject is the part of a notification the workflows care about.
type GCSObject struct {
	Bucket     string // The name of the GCS bucket.
	Name       string // The name of the object.
	MIMEType   string // The MIME type of the object (e.g., "video/mp4").
	Generation string // The object generation, identifies one upload of Name.
}

// NewObjectURL joins a scheme, bucket and object name into an object reference.
// An empty scheme falls back to DefaultObjectURLScheme.
func NewObjectURL(scheme, bucket, name string) string {
	if scheme == "" {
		scheme = DefaultObjectURLScheme
	}
	return scheme + bucket + "/" + name
}

// ParseObjectURL decomposes `<scheme>://bucket/object` into its bucket and
// object name. A reference without a scheme, without a separator after the
// bucket, or with an empty bucket or object name fails with
// ErrMalformedObjectURL.
func ParseObjectURL(objectURL string) (bucket string, object string, err error) {
	scheme, rest, found := strings.Cut(objectURL, "://")
	if !found || scheme == "" {
		return "", "", fmt.Errorf("%w: missing scheme in %q", ErrMalformedObjectURL, objectURL)
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: expected bucket/object in %q", ErrMalformedObjectURL, objectURL)
	}
	return bucket, object, nil
}

// ObjectStore is the object-storage collaborator: read an object and write one.
type ObjectStore interface {
	// NewReader opens the object for reading. A missing object is an error.
	NewReader(ctx context.Context, bucket string, object string) (io.ReadCloser, error)
	// NewWriter returns a writer that creates or replaces the object. The
	// write is committed by Close, which reports any upload failure.
	NewWriter(ctx context.Context, bucket string, object string, contentType string) io.WriteCloser
}

// GCSObjectStore is an ObjectStore backed by Cloud Storage.
type GCSObjectStore struct {
	Client *storage.Client
}

// NewGCSObjectStore wraps a storage client.
func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{Client: client}
}

func (g *GCSObjectStore) NewReader(ctx context.Context, bucket string, object string) (io.ReadCloser, error) {
	return g.Client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (g *GCSObjectStore) NewWriter(ctx context.Context, bucket string, object string, contentType string) io.WriteCloser {
	w := g.Client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	return w
}
