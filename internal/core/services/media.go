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

// Package services contains the business logic for interacting with data sources.
// This file, `media.go`, defines the MediaService, which is responsible for
// retrieving media and scene data from BigQuery and generating secure,
// time-limited URLs for accessing media files stored in Google Cloud Storage (GCS).
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"google.golang.org/api/iterator"
)

// DefaultSignedURLExpiry is used when GenerateSignedURL gets no positive
// duration.
const DefaultSignedURLExpiry = 15 * time.Minute

// ErrNotFound is returned when a media record or scene does not exist.
var ErrNotFound = errors.New("not found")

// BlobSigner signs payload on behalf of the signer service account.
type BlobSigner func(ctx context.Context, payload []byte) ([]byte, error)

// MediaService is the data access layer for persisted media. It reads from
// BigQuery and signs URLs for the stored files.
type MediaService struct {
	BigqueryClient *bigquery.Client                  // Client for interacting with Google BigQuery.
	StorageClient  *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient      *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail    string                            // The service account email used to sign URLs.
	DatasetName    string                            // The name of the BigQuery dataset (e.g., "media_ds").
	MediaTable     string                            // The name of the BigQuery table containing media metadata.
	EmbeddingTable string                            // The name of the table holding scene embeddings.
	Signer         BlobSigner                        // Overrides the IAM signer when set.
}

// NewMediaService creates the service from the shared clients and the
// big_query_data_source section of config.
func NewMediaService(config *cloud.Config, clients *cloud.ServiceClients) *MediaService {
	return &MediaService{
		BigqueryClient: clients.BiqQueryClient,
		StorageClient:  clients.StorageClient,
		IAMClient:      clients.IAMClient,
		SignerEmail:    config.Application.SignerServiceAccountEmail,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		MediaTable:     config.BigQueryDataSource.MediaTable,
		EmbeddingTable: config.BigQueryDataSource.EmbeddingTable,
	}
}

// GetFQN returns the quoted, fully qualified name of the media table.
func (s *MediaService) GetFQN() string {
	return cloud.GetFQN(s.BigqueryClient, s.DatasetName, s.MediaTable)
}

// Get retrieves the current record of a media id.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation and tracing.
//   - id: The unique identifier of the media object to retrieve.
//
// Outputs:
//   - *model.Media: The media record.
//   - error: ErrNotFound when no record exists, or the query error.
func (s *MediaService) Get(ctx context.Context, id string) (*model.Media, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindMediaById, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query media %s: %w", id, err)
	}
	media := &model.Media{}
	if err := itr.Next(media); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("media %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read media %s: %w", id, err)
	}
	return media, nil
}

// GetScene retrieves one scene of the current record of a media id.
func (s *MediaService) GetScene(ctx context.Context, id string, sceneSequence int) (*model.Scene, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryGetScene, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "sequence", Value: sceneSequence},
	}

	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query scene %d of %s: %w", sceneSequence, id, err)
	}
	scene := &model.Scene{}
	if err := itr.Next(scene); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("scene %d of %s: %w", sceneSequence, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read scene %d of %s: %w", sceneSequence, id, err)
	}
	return scene, nil
}

// FindUnembedded returns the current record of every media id that still
// has scenes without embeddings. Only those scenes are kept on the returned
// records, so scenes embedded by an earlier, partially failed run are not
// embedded twice. The embedding batch job polls it.
func (s *MediaService) FindUnembedded(ctx context.Context) ([]*model.Media, error) {
	embeddings := cloud.GetFQN(s.BigqueryClient, s.DatasetName, s.EmbeddingTable)
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindUnembedded, s.GetFQN(), embeddings))

	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Media, 0)
	for {
		media := &model.Media{}
		err := itr.Next(media)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, media)
	}
	if len(out) == 0 {
		return out, nil
	}

	embedded, err := s.embeddedSequences(ctx, embeddings, out)
	if err != nil {
		return nil, err
	}
	return PendingScenes(out, embedded), nil
}

// embeddedSequence is one row of QryEmbeddedSequences.
type embeddedSequence struct {
	MediaId        string `bigquery:"media_id"`
	SequenceNumber int    `bigquery:"sequence_number"`
}

func (s *MediaService) embeddedSequences(ctx context.Context, table string, media []*model.Media) (map[string]map[int]bool, error) {
	ids := make([]string, 0, len(media))
	for _, m := range media {
		ids = append(ids, m.Id)
	}
	q := s.BigqueryClient.Query(fmt.Sprintf(QryEmbeddedSequences, table))
	q.Parameters = []bigquery.QueryParameter{{Name: "ids", Value: ids}}

	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[int]bool)
	for {
		var row embeddedSequence
		err := itr.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if out[row.MediaId] == nil {
			out[row.MediaId] = make(map[int]bool)
		}
		out[row.MediaId][row.SequenceNumber] = true
	}
	return out, nil
}

// PendingScenes drops from every media the scenes listed in embedded (media
// id to embedded sequence numbers) and the scenes without a script. Media
// left with no scenes are dropped.
func PendingScenes(media []*model.Media, embedded map[string]map[int]bool) []*model.Media {
	out := make([]*model.Media, 0, len(media))
	for _, m := range media {
		if m == nil {
			continue
		}
		done := embedded[m.Id]
		pending := make([]*model.Scene, 0, len(m.Scenes))
		for _, scene := range m.Scenes {
			if scene == nil || scene.Script == "" || done[scene.SequenceNumber] {
				continue
			}
			pending = append(pending, scene)
		}
		if len(pending) == 0 {
			continue
		}
		m.Scenes = pending
		out = append(out, m)
	}
	return out
}

// GenerateSignedURL creates a time-limited V4 GET URL for a stored object, so
// clients (like a web browser) can stream it without credentials of their own.
//
// Inputs:
//   - ctx: The context for the request.
//   - objectURL: The object reference, e.g. "gs://bucket/folder/video.mp4".
//   - expires: How long the URL stays valid; DefaultSignedURLExpiry when not positive.
//
// Outputs:
//   - string: The generated signed URL.
//   - error: cloud.ErrMalformedObjectURL for a bad reference (checked before
//     any remote call), or the signing error.
func (s *MediaService) GenerateSignedURL(ctx context.Context, objectURL string, expires time.Duration) (string, error) {
	bucketName, objectName, err := cloud.ParseObjectURL(objectURL)
	if err != nil {
		return "", err
	}
	if expires <= 0 {
		expires = DefaultSignedURLExpiry
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}

	// With a signer service account the signature comes from the IAM
	// Credentials API, so no key file is needed on the host.
	if signer := s.blobSigner(); signer != nil && s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			return signer(ctx, b)
		}
		u, err := storage.SignedURL(bucketName, objectName, opts)
		if err != nil {
			return "", fmt.Errorf("SignedURL(%q, %q): %w", bucketName, objectName, err)
		}
		return u, nil
	}

	if s.StorageClient == nil {
		return "", errors.New("no storage client or signer service account configured")
	}
	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", bucketName, objectName, err)
	}
	return u, nil
}

func (s *MediaService) blobSigner() BlobSigner {
	if s.Signer != nil {
		return s.Signer
	}
	if s.IAMClient == nil {
		return nil
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
			Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
			Payload: payload,
		})
		if err != nil {
			return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
		}
		return resp.SignedBlob, nil
	}
}
