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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines a generic Pub/Sub message listener that delegates the
// processing of each message to a cor.Command (usually a workflow).
//
// Logic Flow:
//  1. A PubSubListener is created per configured subscription.
//  2. Once the workflows are assembled, a command and a seed function are attached.
//  3. `Listen` starts a goroutine running subscription.Receive.
//  4. Every message gets a fresh cor.Context; the seed function stores the
//     payload in it and the command runs.
//  5. A run without errors is acknowledged. A run with errors is negatively
//     acknowledged so Pub/Sub redelivers it (or dead-letters it).
//  6. When a RunLedger is attached, completed notifications are recorded and
//     redeliveries of an already completed object generation are acked
//     without running the command again.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SeedFunc stores a message payload in a fresh context before the command runs.
type SeedFunc func(ctx cor.Context, data []byte) error

// RunLedger remembers which events completed successfully.
type RunLedger interface {
	Seen(key string) (bool, error)
	Record(key string) error
}

// PubSubListener connects one subscription to a processing command.
type PubSubListener struct {
	name         string
	settings     TopicSubscription
	subscription *pubsub.Subscription
	command      cor.Command
	seed         SeedFunc
	ledger       RunLedger
}

// NewPubSubListener creates a listener for the subscription described by
// settings. A nil client produces a listener that can only Process messages,
// which is what tests use.
func NewPubSubListener(pubsubClient *pubsub.Client, name string, settings TopicSubscription) *PubSubListener {
	l := &PubSubListener{name: name, settings: settings}
	if pubsubClient != nil {
		l.subscription = pubsubClient.Subscription(settings.Name)
		if settings.MaxOutstanding > 0 {
			l.subscription.ReceiveSettings.MaxOutstandingMessages = settings.MaxOutstanding
		}
		if settings.TimeoutInSeconds > 0 {
			l.subscription.ReceiveSettings.MaxExtension = time.Duration(settings.TimeoutInSeconds) * time.Second
		}
	}
	return l
}

// Name returns the logical name of the listener.
func (m *PubSubListener) Name() string {
	return m.name
}

// SetCommand attaches the command run for every message and the seed function
// that prepares its context. An already attached command is kept.
func (m *PubSubListener) SetCommand(command cor.Command, seed SeedFunc) {
	if m.command == nil {
		m.command = command
		m.seed = seed
	}
}

// SetLedger attaches a RunLedger. A nil ledger disables deduplication.
func (m *PubSubListener) SetLedger(ledger RunLedger) {
	m.ledger = ledger
}

// Listen starts receiving messages in the background until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	if m.subscription == nil || m.command == nil {
		slog.WarnContext(ctx, "listener not started, missing subscription or command", "listener", m.name)
		return
	}
	slog.InfoContext(ctx, "listening", "listener", m.name, "subscription", m.subscription.String())

	go func() {
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if m.Process(msgCtx, msg.ID, msg.Data) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil {
			slog.ErrorContext(ctx, "error receiving data", "listener", m.name, "error", err)
		}
	}()
}

// Process runs the attached command for one message and reports whether the
// message should be acknowledged.
func (m *PubSubListener) Process(ctx context.Context, messageID string, data []byte) (ack bool) {
	tracer := otel.Tracer("message-listener")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("listener", m.name), attribute.String("message_id", messageID))

	if m.command == nil {
		slog.ErrorContext(spanCtx, "no command attached, message not processed", "listener", m.name)
		span.SetStatus(codes.Error, "no command")
		return false
	}

	key := LedgerKey(m.name, messageID, data)
	if m.ledger != nil {
		seen, err := m.ledger.Seen(key)
		if err != nil {
			slog.WarnContext(spanCtx, "ledger lookup failed, processing anyway", "key", key, "error", err)
		}
		if seen {
			slog.InfoContext(spanCtx, "event already processed, acknowledging", "key", key)
			span.SetStatus(codes.Ok, "duplicate")
			return true
		}
	}

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(spanCtx)

	if m.seed != nil {
		if err := m.seed(chainCtx, data); err != nil {
			slog.ErrorContext(spanCtx, "unable to seed workflow context", "listener", m.name, "error", err)
			span.SetStatus(codes.Error, err.Error())
			return false
		}
	}

	_ = m.command.Execute(chainCtx)

	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed")
		for step, e := range chainCtx.GetErrors() {
			slog.ErrorContext(spanCtx, "error executing chain", "listener", m.name, "command", step, "error", e)
		}
		return false
	}

	if m.ledger != nil {
		if err := m.ledger.Record(key); err != nil {
			slog.WarnContext(spanCtx, "unable to record processed event", "key", key, "error", err)
		}
	}
	span.SetStatus(codes.Ok, "success")
	return true
}

// LedgerKey identifies an event for deduplication. Object notifications are
// keyed by bucket, name and generation so a redelivered or duplicated
// notification of the same upload maps to the same key; anything else falls
// back to the message id.
func LedgerKey(listener string, messageID string, data []byte) string {
	var n GCSPubSubNotification
	if err := json.Unmarshal(data, &n); err == nil && n.Bucket != "" && n.Name != "" {
		return fmt.Sprintf("%s/%s/%s#%s", listener, n.Bucket, n.Name, n.Generation)
	}
	return fmt.Sprintf("%s/message/%s", listener, messageID)
}
