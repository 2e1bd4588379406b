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
// This file, `transient.go`, contains struct definitions for data models that
// are primarily used for in-memory operations during the execution of a workflow.
// They are intermediate containers passed between commands and are not
// persisted in their current form.
package model

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSummary is returned when a MediaSummary fails schema validation.
var ErrInvalidSummary = errors.New("invalid media summary")

var timestampPattern = regexp.MustCompile(`^\d{2,3}:[0-5]\d:[0-5]\d$`)

// summaryValidator is safe for concurrent use and caches struct metadata.
var summaryValidator = newSummaryValidator()

func newSummaryValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hhmmss", func(fl validator.FieldLevel) bool {
		return timestampPattern.MatchString(fl.Field().String())
	})
	return v
}

// TimeSpan represents a time range with HH:MM:SS start and end points. It is
// used within MediaSummary to hold the scene timestamps extracted by the model
// before they are turned into Scene records.
type TimeSpan struct {
	Start string `json:"start" validate:"required,hhmmss"`
	End   string `json:"end" validate:"required,hhmmss"`
}

// MediaSummary is the structured form of the model's first analysis of a media
// file. Its fields are merged into the persistent Media record.
type MediaSummary struct {
	Title           string        `json:"title" validate:"required"`
	Category        string        `json:"category" validate:"required"`
	Summary         string        `json:"summary" validate:"required"`
	LengthInSeconds int           `json:"length_in_seconds" validate:"gte=0"`
	MediaUrl        string        `json:"media_url,omitempty"`
	Director        string        `json:"director,omitempty"`
	ReleaseYear     int           `json:"release_year,omitempty" validate:"omitempty,gte=1800"`
	Genre           string        `json:"genre,omitempty"`
	Rating          string        `json:"rating,omitempty"`
	Cast            []*CastMember `json:"cast,omitempty" validate:"dive,required"`
	SceneTimeStamps []*TimeSpan   `json:"scene_time_stamps,omitempty" validate:"dive,required"`
}

// Validate checks the summary against its schema. The returned error wraps
// ErrInvalidSummary.
func (s *MediaSummary) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: summary is empty", ErrInvalidSummary)
	}
	if err := summaryValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	return nil
}

// SceneMatchResult holds one row of a vector similarity search: the keys of the
// matched scene and its distance from the query vector.
type SceneMatchResult struct {
	MediaId        string  `json:"media_id" bigquery:"media_id"`
	SequenceNumber int     `json:"sequence_number" bigquery:"sequence_number"`
	Distance       float64 `json:"distance" bigquery:"distance"`
}
