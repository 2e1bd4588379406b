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

package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

// RowInserter writes rows to one table. *bigquery.Inserter satisfies it.
type RowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// TableStore hands out inserters for dataset tables. Building an inserter
// performs no I/O.
type TableStore interface {
	Inserter(dataset string, table string) RowInserter
}

// BigQueryTables is the TableStore backed by a BigQuery client.
type BigQueryTables struct {
	Client *bigquery.Client
}

// NewBigQueryTables wraps a BigQuery client.
func NewBigQueryTables(client *bigquery.Client) *BigQueryTables {
	return &BigQueryTables{Client: client}
}

// Inserter returns the streaming inserter of dataset.table.
func (b *BigQueryTables) Inserter(dataset string, table string) RowInserter {
	return b.Client.Dataset(dataset).Table(table).Inserter()
}

// RowErrors flattens the result of an insert into a list of row-level errors.
// A nil error yields an empty list. A bigquery.PutMultiError yields one entry
// per failed row; any other error is a single entry.
func RowErrors(err error) []error {
	if err == nil {
		return nil
	}
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		out := make([]error, 0, len(multi))
		for i := range multi {
			rowErr := multi[i]
			out = append(out, fmt.Errorf("row %d (insert id %q): %v", rowErr.RowIndex, rowErr.InsertID, rowErr.Errors))
		}
		return out
	}
	return []error{err}
}

// GetFQN returns the backtick-quoted `project.dataset.table` name used in
// Standard SQL.
func GetFQN(client *bigquery.Client, dataset string, table string) string {
	meta := client.Dataset(dataset).Table(table).FullyQualifiedName()
	return "`" + strings.Replace(meta, ":", ".", 1) + "`"
}
