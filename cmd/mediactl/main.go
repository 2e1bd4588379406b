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

// Command mediactl runs the media pipelines once from the command line and
// queries the stored results, using the same configuration as the server.
//
//	mediactl run ingest --bucket media_low_res_resources --name trailer.mp4
//	mediactl search "a lighthouse in a storm" --count 3
//	mediactl sign gs://media_low_res_resources/trailer.mp4 --minutes 30
//	mediactl replay --listener LowResTopic --bucket media_low_res_resources --name trailer.mp4 --generation 7
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/app"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/ledger"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/telemetry"
	"github.com/urfave/cli/v2"
)

// ErrRunFailed is returned when a pipeline run records errors.
var ErrRunFailed = errors.New("pipeline run failed")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	objectFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "bucket",
			Aliases:  []string{"b"},
			Usage:    "Bucket holding the media file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "name",
			Aliases:  []string{"n"},
			Usage:    "Object name of the media file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "generation",
			Usage: "Object generation reported in the notification",
			Value: "0",
		},
	}

	return &cli.App{
		Name:  "mediactl",
		Usage: "Run media pipelines and query their results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: func(c *cli.Context) error {
			telemetry.SetupLogging(c.App.ErrWriter, telemetry.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one pipeline for a stored object",
				Subcommands: []*cli.Command{
					{Name: "ingest", Usage: "Analyze and persist a resized file", Flags: objectFlags, Action: runCommand},
					{Name: "reprocess", Usage: "Re-analyze a stored file without downloading it", Flags: objectFlags, Action: runCommand},
					{Name: "resize", Usage: "Resize an original upload into the low resolution bucket", Flags: objectFlags, Action: runCommand},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed the scenes of every media without embeddings once",
				Action: embedCommand,
			},
			{
				Name:      "search",
				Usage:     "Find the scenes closest to a text query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of scenes to return (1-20)",
						Value: 5,
					},
				},
			},
			{
				Name:  "replay",
				Usage: "Forget a processed notification so its next delivery runs again (server stopped)",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "listener",
						Usage: "Listener that recorded the notification",
						Value: cloud.LowResTopic,
					},
				}, objectFlags...),
				Action: replayCommand,
			},
			{
				Name:      "sign",
				Usage:     "Print a signed URL of a stored object",
				ArgsUsage: "<object-url>",
				Action:    signCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "minutes",
						Usage: "Validity of the URL in minutes",
						Value: 15,
					},
				},
			},
		},
	}
}

// notification builds the Pub/Sub payload a storage notification would carry.
func notification(bucket, name, generation string) ([]byte, error) {
	return json.Marshal(cloud.GCSPubSubNotification{
		Kind:       "storage#object",
		ID:         fmt.Sprintf("%s/%s/%s", bucket, name, generation),
		Bucket:     bucket,
		Name:       name,
		Generation: generation,
	})
}

// runPipeline seeds a fresh context with payload, runs command and prints
// the error ledger. Temporary files are removed whatever the outcome.
func runPipeline(ctx context.Context, w io.Writer, command cor.Command, seed cloud.SeedFunc, payload []byte) error {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)

	if err := seed(chainCtx, payload); err != nil {
		return err
	}
	_ = command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		fmt.Fprintf(w, "%s: ok\n", command.GetName())
		return nil
	}
	errs := chainCtx.GetErrors()
	steps := make([]string, 0, len(errs))
	for step := range errs {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	for _, step := range steps {
		fmt.Fprintf(w, "%s: %s failed: %v\n", command.GetName(), step, errs[step])
	}
	return ErrRunFailed
}

func withState(c *cli.Context, fn func(ctx context.Context, state *app.State) error) error {
	ctx := c.Context
	config, err := app.LoadConfig()
	if err != nil {
		return err
	}
	state, err := app.NewState(ctx, config)
	if err != nil {
		return err
	}
	defer state.Close()
	return fn(ctx, state)
}

func runCommand(c *cli.Context) error {
	payload, err := notification(c.String("bucket"), c.String("name"), c.String("generation"))
	if err != nil {
		return err
	}
	return withState(c, func(ctx context.Context, state *app.State) error {
		var (
			command cor.Command
			seed    cloud.SeedFunc = workflow.SeedTrigger
		)
		switch c.Command.Name {
		case "ingest":
			command = state.Workflows.Ingestion
		case "reprocess":
			command = state.Workflows.Reader
		case "resize":
			command = state.Workflows.Resize
			seed = workflow.SeedResize(state.Config.Storage.ObjectURLScheme)
		default:
			return fmt.Errorf("unknown pipeline %q", c.Command.Name)
		}
		return runPipeline(ctx, c.App.Writer, command, seed, payload)
	})
}

func embedCommand(c *cli.Context) error {
	return withState(c, func(ctx context.Context, state *app.State) error {
		result, err := state.Workflows.EmbeddingBatch.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "media: %d, scenes embedded: %d, failed: %d\n", result.Media, result.Succeeded, result.Failed)
		if result.Failed > 0 {
			return ErrRunFailed
		}
		return nil
	})
}

func searchCommand(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return errors.New("query is required")
	}
	return withState(c, func(ctx context.Context, state *app.State) error {
		matches, err := state.SearchService.FindScenes(ctx, query, c.Int("count"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintf(c.App.Writer, "%.4f\t%s\t%d\n", m.Distance, m.MediaId, m.SequenceNumber)
		}
		return nil
	})
}

// forget removes key from store and reports when it had been recorded.
func forget(w io.Writer, store *ledger.Ledger, key string) error {
	at, err := store.RecordedAt(key)
	if errors.Is(err, ledger.ErrNotRecorded) {
		fmt.Fprintf(w, "%s: not recorded\n", key)
		return nil
	}
	if err != nil {
		return err
	}
	if err := store.Forget(key); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: forgotten, was recorded %s\n", key, at.Format(time.RFC3339))
	return nil
}

func replayCommand(c *cli.Context) error {
	payload, err := notification(c.String("bucket"), c.String("name"), c.String("generation"))
	if err != nil {
		return err
	}
	config, err := app.LoadConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(config.Ledger)
	if err != nil {
		return fmt.Errorf("unable to open ledger: %w", err)
	}
	defer store.Close()
	return forget(c.App.Writer, store, cloud.LedgerKey(c.String("listener"), "", payload))
}

func signCommand(c *cli.Context) error {
	objectURL := c.Args().First()
	if _, _, err := cloud.ParseObjectURL(objectURL); err != nil {
		return err
	}
	return withState(c, func(ctx context.Context, state *app.State) error {
		signed, err := state.MediaService.GenerateSignedURL(ctx, objectURL, time.Duration(c.Int("minutes"))*time.Minute)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, signed)
		return nil
	})
}
