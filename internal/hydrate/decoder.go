// Package hydrate decodes YAML definition files into typed records, letting
// callers normalise the raw document before decoding and adjust or validate
// the typed value afterwards.
package hydrate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Context carries identifiers tied to one definition file.
type Context struct {
	Path string
	// Quiet asks hooks to skip per-entry warnings.
	Quiet bool
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated value after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default YAML decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts YAML documents into strongly typed values.
type Decoder[T any] struct {
	preHooks    []PreHook
	postHooks   []PostHook[T]
	knownFields bool
	custom      CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithKnownFields rejects documents carrying keys T does not declare.
func WithKnownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.knownFields = true
	}
}

// WithCustomDecoder replaces the default YAML decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeFile reads ctx.Path and decodes its contents.
func (d *Decoder[T]) DecodeFile(ctx Context) (T, error) {
	var zero T
	raw, err := os.ReadFile(ctx.Path)
	if err != nil {
		return zero, fmt.Errorf("hydrate: read %q: %w", ctx.Path, err)
	}
	return d.Decode(ctx, raw)
}

// Decode converts a YAML document into T applying configured hooks.
func (d *Decoder[T]) Decode(ctx Context, document []byte) (T, error) {
	var zero T

	var current map[string]any
	if err := yaml.Unmarshal(document, &current); err != nil {
		return zero, fmt.Errorf("hydrate: parse %q: %w", ctx.Path, err)
	}
	if current == nil {
		return zero, fmt.Errorf("hydrate: document %q is empty", ctx.Path)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %q failed: %w", ctx.Path, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %q failed: %w", ctx.Path, err)
		}
		result = decoded
	} else {
		buffer, err := yaml.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal payload for %q: %w", ctx.Path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(buffer))
		decoder.KnownFields(d.knownFields)
		if err := decoder.Decode(&result); err != nil && !errors.Is(err, io.EOF) {
			return zero, fmt.Errorf("hydrate: decode %q: %w", ctx.Path, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %q failed: %w", ctx.Path, err)
		}
	}

	return result, nil
}
