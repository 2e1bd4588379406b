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

// Package model defines the core data structures for the application.
// This file holds the records that are written to the tabular store: a Media
// record that owns its Scenes, and SceneEmbedding records that reference a
// (media id, scene sequence) pair and are stored independently for vector
// search.
package model

import (
	"time"

	"github.com/google/uuid"
)

// CastMember pairs a character with the actor who played it.
type CastMember struct {
	CharacterName string `json:"character_name" bigquery:"character_name"`
	ActorName     string `json:"actor_name" bigquery:"actor_name"`
}

// Scene is a timestamped sub-segment of a Media. The sequence number is
// unique within its Media but not necessarily contiguous.
type Scene struct {
	SequenceNumber   int    `json:"sequence" bigquery:"sequence"`
	TokensToGenerate int    `json:"tokens_to_generate,omitempty" bigquery:"tokens_to_generate"`
	TokensGenerated  int    `json:"tokens_generated,omitempty" bigquery:"tokens_generated"`
	Start            string `json:"start" bigquery:"start"` // HH:MM:SS
	End              string `json:"end" bigquery:"end"`     // HH:MM:SS
	Script           string `json:"script" bigquery:"script"`
}

// Media is the metadata record of a processed file.
type Media struct {
	Id              string        `json:"id" bigquery:"id"`
	CreateDate      time.Time     `json:"create_date" bigquery:"create_date"`
	Title           string        `json:"title" bigquery:"title"`
	Category        string        `json:"category" bigquery:"category"`
	Summary         string        `json:"summary" bigquery:"summary"`
	LengthInSeconds int           `json:"length_in_seconds" bigquery:"length_in_seconds"`
	MediaUrl        string        `json:"media_url" bigquery:"media_url"`
	Director        string        `json:"director,omitempty" bigquery:"director"`
	ReleaseYear     int           `json:"release_year,omitempty" bigquery:"release_year"`
	Genre           string        `json:"genre,omitempty" bigquery:"genre"`
	Rating          string        `json:"rating,omitempty" bigquery:"rating"`
	Cast            []*CastMember `json:"cast" bigquery:"cast"`
	Scenes          []*Scene      `json:"scenes" bigquery:"scenes"`
}

// NewMedia creates an empty Media whose id is the version 5 (SHA-1, URL
// namespace) UUID of fileName, so the same file name always maps to the same
// record.
func NewMedia(fileName string) *Media {
	return &Media{
		Id:         MediaIdFor(fileName),
		CreateDate: time.Now(),
		Cast:       make([]*CastMember, 0),
		Scenes:     make([]*Scene, 0),
	}
}

// MediaIdFor returns the deterministic media id of fileName.
func MediaIdFor(fileName string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileName)).String()
}

// SceneBySequence returns the scene with the given sequence number, or nil.
func (m *Media) SceneBySequence(sequence int) *Scene {
	for _, s := range m.Scenes {
		if s.SequenceNumber == sequence {
			return s
		}
	}
	return nil
}

// SceneEmbedding is the vector representation of one Scene's script.
type SceneEmbedding struct {
	MediaId        string    `json:"media_id" bigquery:"media_id"`
	SequenceNumber int       `json:"sequence_number" bigquery:"sequence_number"`
	ModelName      string    `json:"model_name" bigquery:"model_name"`
	Embeddings     []float64 `json:"embeddings" bigquery:"embeddings"`
}

// NewSceneEmbedding creates an embedding record with an empty vector.
func NewSceneEmbedding(mediaId string, sequenceNumber int, modelName string) *SceneEmbedding {
	return &SceneEmbedding{
		MediaId:        mediaId,
		SequenceNumber: sequenceNumber,
		ModelName:      modelName,
		Embeddings:     make([]float64, 0),
	}
}
