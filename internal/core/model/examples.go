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

package model

// Few-shot examples embedded in prompts. Showing the model a filled-in
// instance of the expected JSON keeps its answers parseable.

// GetExampleScene returns a sample Scene with a short screenplay-style script.
func GetExampleScene() *Scene {
	return &Scene{
		SequenceNumber: 1,
		Start:          "00:00:00",
		End:            "00:00:42",
		Script: `
EXT. HARBOR LIGHTHOUSE - NIGHT

Rain lashes the rocks. A beam of light sweeps across the black water.

NARRATOR (V.O.) - (Idris Okafor)
Every light was built for someone who is still out there.

MARA VOSS (30s), soaked, climbs the spiral stairs two at a time.

MARA - (Lena Hartmann)
The lamp is failing. If it goes dark, the ferry won't find the channel.

At the top, keeper TOMAS BRECK (60s) turns from the window.

TOMAS - (Felix Amari)
Then we keep it burning by hand.`,
	}
}

// GetExampleSummary returns a sample MediaSummary with cast and scene
// timestamps populated.
func GetExampleSummary() *MediaSummary {
	return &MediaSummary{
		Title:           "The Last Keeper",
		Category:        "trailer",
		Summary:         "A lighthouse keeper and a stranded engineer fight to keep the harbor light alive through a storm.",
		LengthInSeconds: 134,
		MediaUrl:        "gs://bucket_name/the-last-keeper.mp4",
		Director:        "Ana Lindqvist",
		ReleaseYear:     2023,
		Genre:           "Drama",
		Rating:          "PG-13",
		Cast: []*CastMember{
			{CharacterName: "Mara Voss", ActorName: "Lena Hartmann"},
			{CharacterName: "Tomas Breck", ActorName: "Felix Amari"},
		},
		SceneTimeStamps: []*TimeSpan{
			{Start: "00:00:00", End: "00:00:42"},
			{Start: "00:00:43", End: "00:01:30"},
			{Start: "00:01:31", End: "00:02:14"},
		},
	}
}
