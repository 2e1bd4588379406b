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

package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"google.golang.org/genai"
)

// FakeObjectStore is an in-memory cloud.ObjectStore.
type FakeObjectStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	WriteErr     error // returned by Close of every writer when set
}

// NewFakeObjectStore creates an empty store.
func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func objectKey(bucket, object string) string {
	return bucket + "/" + object
}

// Put stores an object directly.
func (f *FakeObjectStore) Put(bucket, object string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectKey(bucket, object)] = data
}

// Object returns a stored object and whether it exists.
func (f *FakeObjectStore) Object(bucket, object string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey(bucket, object)]
	return data, ok
}

// ContentType returns the content type an object was written with.
func (f *FakeObjectStore) ContentType(bucket, object string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentTypes[objectKey(bucket, object)]
}

func (f *FakeObjectStore) NewReader(_ context.Context, bucket string, object string) (io.ReadCloser, error) {
	data, ok := f.Object(bucket, object)
	if !ok {
		return nil, fmt.Errorf("%s: %w", objectKey(bucket, object), storage.ErrObjectNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// NewWriter returns a writer that commits the object on Close. Like a storage
// writer, it discards the object when ctx was cancelled before Close.
func (f *FakeObjectStore) NewWriter(ctx context.Context, bucket string, object string, contentType string) io.WriteCloser {
	return &fakeWriter{ctx: ctx, store: f, key: objectKey(bucket, object), contentType: contentType}
}

type fakeWriter struct {
	ctx         context.Context
	store       *FakeObjectStore
	key         string
	contentType string
	buf         bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.store.WriteErr != nil {
		return w.store.WriteErr
	}
	w.store.objects[w.key] = w.buf.Bytes()
	w.store.contentTypes[w.key] = w.contentType
	return nil
}

// FakeInserter records the rows it is given and returns Err.
type FakeInserter struct {
	mu   sync.Mutex
	Rows []interface{}
	Err  error
}

func (f *FakeInserter) Put(_ context.Context, src interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Rows = append(f.Rows, src)
	return nil
}

// RowCount returns the number of accepted rows.
func (f *FakeInserter) RowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Rows)
}

// FakeTables is a cloud.TableStore handing out one FakeInserter per table.
type FakeTables struct {
	mu        sync.Mutex
	inserters map[string]*FakeInserter
}

// NewFakeTables creates an empty table store.
func NewFakeTables() *FakeTables {
	return &FakeTables{inserters: make(map[string]*FakeInserter)}
}

// Table returns the inserter of dataset.table, creating it if needed.
func (f *FakeTables) Table(dataset string, table string) *FakeInserter {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dataset + "." + table
	if f.inserters[key] == nil {
		f.inserters[key] = &FakeInserter{}
	}
	return f.inserters[key]
}

func (f *FakeTables) Inserter(dataset string, table string) cloud.RowInserter {
	return f.Table(dataset, table)
}

// FakeGenerativeModel answers every call with Respond. Calls are recorded.
type FakeGenerativeModel struct {
	mu      sync.Mutex
	Respond func(contents []*genai.Content) (*genai.GenerateContentResponse, error)
	Prompts []string
}

// NewTextModel returns a model that always answers text.
func NewTextModel(text string) *FakeGenerativeModel {
	return &FakeGenerativeModel{Respond: func([]*genai.Content) (*genai.GenerateContentResponse, error) {
		return TextResponse(text), nil
	}}
}

func (f *FakeGenerativeModel) GenerateContent(_ context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	for _, c := range contents {
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				f.Prompts = append(f.Prompts, p.Text)
			}
		}
	}
	f.mu.Unlock()
	return f.Respond(contents)
}

// CallCount returns the number of text prompts received.
func (f *FakeGenerativeModel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// TextResponse wraps text in a single-candidate response with token usage.
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: int32(len(text)),
		},
	}
}

// FakeEmbeddingModel returns Vector for every content, or Err. A request
// containing the text FailOn fails with ErrFake.
type FakeEmbeddingModel struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	FailOn string
	Texts  []string
	Models []string
}

func (f *FakeEmbeddingModel) EmbedContent(_ context.Context, modelName string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Models = append(f.Models, modelName)
	failed := false
	for _, c := range contents {
		for _, p := range c.Parts {
			f.Texts = append(f.Texts, p.Text)
			failed = failed || (f.FailOn != "" && p.Text == f.FailOn)
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if failed {
		return nil, ErrFake
	}
	resp := &genai.EmbedContentResponse{}
	for range contents {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: f.Vector})
	}
	return resp, nil
}

// FakeSceneIndex returns Matches (truncated to k) or Err.
type FakeSceneIndex struct {
	Matches []*model.SceneMatchResult
	Err     error
	LastK   int
	LastVec []float64
}

func (f *FakeSceneIndex) Nearest(_ context.Context, vector []float64, k int) ([]*model.SceneMatchResult, error) {
	f.LastK = k
	f.LastVec = vector
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Matches) > k {
		return f.Matches[:k], nil
	}
	return f.Matches, nil
}

// ErrFake is a generic failure for fakes.
var ErrFake = errors.New("fake failure")
