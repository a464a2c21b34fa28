// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hasher runs one Argon2id hash computation per request: an optional
// simulated delay, derivation with a fresh salt, PHC encoding and a
// self-verification of the result.
package hasher

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/argon2"

	"github.com/opentrusty/passhash/internal/observability/logger"
	"github.com/opentrusty/passhash/internal/params"
)

// DefaultSaltLength is the salt size in bytes.
const DefaultSaltLength uint32 = 16

// Observer receives measurements from the engine. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveDelay(ctx context.Context, d time.Duration)
	ObserveDerivation(ctx context.Context, p Params, d time.Duration)
	AddInFlight(ctx context.Context, delta int64)
}

type noopObserver struct{}

func (noopObserver) ObserveDelay(context.Context, time.Duration)              {}
func (noopObserver) ObserveDerivation(context.Context, Params, time.Duration) {}
func (noopObserver) AddInFlight(context.Context, int64)                       {}

// Engine executes hash requests. It holds no per-request state and is safe
// for concurrent use as long as its salt source is.
type Engine struct {
	salt       io.Reader
	clock      clock.Clock
	saltLength uint32
	tracer     trace.Tracer
	observer   Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithSaltSource replaces crypto/rand as the salt source.
func WithSaltSource(r io.Reader) Option {
	return func(e *Engine) { e.salt = r }
}

// WithClock replaces the wall clock used for the simulated delay.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSaltLength sets the salt size in bytes.
func WithSaltLength(n uint32) Option {
	return func(e *Engine) { e.saltLength = n }
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine backed by crypto/rand and the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		salt:       rand.Reader,
		clock:      clock.New(),
		saltLength: DefaultSaltLength,
		tracer:     otel.Tracer("github.com/opentrusty/passhash/internal/hasher"),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the hash pipeline for req and returns the PHC string.
//
// ctx is used for tracing and logging only. A running derivation is not
// interrupted when ctx is cancelled.
func (e *Engine) Execute(ctx context.Context, req params.HashRequest) (string, error) {
	ctx, span := e.tracer.Start(ctx, "hasher.Execute", trace.WithAttributes(
		attribute.Int64("hasher.time_cost", int64(req.TimeCost)),
		attribute.Int64("hasher.memory_kib", int64(req.MemoryKiB)),
		attribute.Int64("hasher.parallelism", int64(req.Parallelism)),
		attribute.Int64("hasher.delay_ms", int64(min(req.DelayMillis(), math.MaxInt64))),
	))
	defer span.End()

	encoded, err := e.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return encoded, nil
}

func (e *Engine) execute(ctx context.Context, req params.HashRequest) (string, error) {
	if req.HasDelay() {
		d := delayDuration(*req.Delay)
		e.observer.ObserveDelay(ctx, d)
		e.clock.Sleep(d)
	}

	p := Params{
		MemoryKiB:   req.MemoryKiB,
		TimeCost:    req.TimeCost,
		Parallelism: req.Parallelism,
		KeyLength:   req.KeyLength,
		SaltLength:  e.saltLength,
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	salt := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(e.salt, salt); err != nil {
		return "", internal(fmt.Errorf("generate salt: %w", err))
	}

	key := e.derive(ctx, req.Password, salt, p)

	encoded := Encode(p, salt, key)
	if err := selfCheck(req.Password, encoded, p); err != nil {
		slog.ErrorContext(ctx, "hash self-verification failed",
			logger.Component("hasher"),
			logger.Operation("verify"),
			logger.Error(err),
		)
		return "", internal(err)
	}

	return encoded, nil
}

func (e *Engine) derive(ctx context.Context, password string, salt []byte, p Params) []byte {
	e.observer.AddInFlight(ctx, 1)
	defer e.observer.AddInFlight(ctx, -1)

	start := time.Now()
	key := argon2.IDKey([]byte(password), salt, p.TimeCost, p.MemoryKiB, p.Parallelism, p.KeyLength)
	e.observer.ObserveDerivation(ctx, p, time.Since(start))
	return key
}

// delayDuration converts milliseconds to a Duration, clamping on overflow.
func delayDuration(ms uint64) time.Duration {
	if ms > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}
