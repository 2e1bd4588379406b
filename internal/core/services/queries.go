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
// This file, `queries.go`, centralizes the BigQuery SQL used by the services.
// Table names are injected with `fmt.Sprintf` (they come from configuration
// and are quoted by cloud.GetFQN); every value that comes from a caller is a
// named query parameter.
package services

const (
	// latestRow keeps the newest row of every media id. Rows are appended on
	// every (re)processing run, so readers must not assume one row per id.
	latestRow = "QUALIFY ROW_NUMBER() OVER (PARTITION BY id ORDER BY create_date DESC) = 1"

	// QrySequenceKnn runs the k-nearest-neighbor search over the scene
	// embeddings.
	//
	// Placeholders:
	//   - `%s`: The fully qualified name of the embeddings table.
	//   - `%d`: top_k, validated by the caller.
	//   - `@embedding`: The query vector as ARRAY<FLOAT64>.
	QrySequenceKnn = "SELECT base.media_id AS media_id, base.sequence_number AS sequence_number, distance " +
		"FROM VECTOR_SEARCH(TABLE %s, 'embeddings', (SELECT @embedding AS embeddings), " +
		"top_k => %d, distance_type => 'EUCLIDEAN') ORDER BY distance ASC"

	// QryFindMediaById returns the current record of one media id.
	QryFindMediaById = "SELECT * FROM %s WHERE id = @id " + latestRow

	// QryGetScene extracts one scene from the nested `scenes` array of the
	// current record of a media id.
	QryGetScene = "SELECT s.sequence, s.tokens_to_generate, s.tokens_generated, s.start, s.`end`, s.script " +
		"FROM (SELECT * FROM %s WHERE id = @id " + latestRow + "), UNNEST(scenes) AS s " +
		"WHERE s.sequence = @sequence"

	// QryFindUnembedded returns the current record of every media id that
	// still has a scripted scene without a row in the embeddings table. A
	// media whose embedding run failed halfway is returned again.
	//
	// Placeholders:
	//   - `%[1]s`: The fully qualified name of the media table.
	//   - `%[2]s`: The fully qualified name of the embeddings table.
	QryFindUnembedded = "SELECT * FROM (SELECT * FROM %[1]s WHERE TRUE " + latestRow + ") AS m " +
		"WHERE EXISTS (SELECT 1 FROM UNNEST(m.scenes) AS s WHERE s.script != '' " +
		"AND NOT EXISTS (SELECT 1 FROM %[2]s AS e WHERE e.media_id = m.id AND e.sequence_number = s.sequence))"

	// QryEmbeddedSequences lists the scenes of the given media ids that
	// already have an embedding.
	//
	// Placeholders:
	//   - `%s`: The fully qualified name of the embeddings table.
	//   - `@ids`: The media ids as ARRAY<STRING>.
	QryEmbeddedSequences = "SELECT DISTINCT media_id, sequence_number FROM %s WHERE media_id IN UNNEST(@ids)"
)
