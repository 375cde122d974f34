package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrETagMismatch = errors.New("state: etag mismatch")
	ErrInvalidRef   = errors.New("state: invalid ref")
)

// DefaultKey is used when a Ref leaves Key empty.
const DefaultKey = "default"

// Ref identifies one persisted snapshot.
type Ref struct {
	Domain string
	Key    string
}

// Identifier returns the canonical storage key, "<domain>/<key>".
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidRef)
	}
	key := strings.TrimSpace(r.Key)
	if key == "" {
		key = DefaultKey
	}
	for _, part := range []string{domain, key} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q is not a valid path segment", ErrInvalidRef, part)
		}
	}
	return domain + "/" + key, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

// Validator is implemented by snapshots that can reject themselves before a
// save.
type Validator interface {
	Validate() error
}

// Binding pins a Store to one Ref so callers only deal with snapshots.
type Binding[T any] struct {
	Store Store[T]
	Ref   Ref
	// Now stamps Meta.UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Bind returns a Binding for ref.
func Bind[T any](store Store[T], ref Ref) Binding[T] {
	return Binding[T]{Store: store, Ref: ref}
}

// Load returns the bound snapshot. ok is false when nothing was saved yet.
func (b Binding[T]) Load(ctx context.Context) (T, bool, error) {
	snapshot, _, ok, err := b.LoadMeta(ctx)
	return snapshot, ok, err
}

// LoadMeta is Load plus the stored metadata.
func (b Binding[T]) LoadMeta(ctx context.Context) (T, Meta, bool, error) {
	var zero T
	if b.Store == nil {
		return zero, Meta{}, false, fmt.Errorf("state: store is required")
	}
	snapshot, meta, ok, err := b.Store.Load(ctx, b.Ref)
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: load %q: %w", b.Ref.Domain, err)
	}
	return snapshot, meta, ok, nil
}

// Save validates and stores snapshot unconditionally, stamping fresh
// metadata.
func (b Binding[T]) Save(ctx context.Context, snapshot T) error {
	_, err := b.save(ctx, snapshot, Meta{})
	return err
}

// Mutate loads the snapshot, checks expected.ETag when both sides carry one,
// applies fn, validates and saves. A missing snapshot starts from the zero
// value.
func (b Binding[T]) Mutate(ctx context.Context, expected Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}
	snapshot, loaded, ok, err := b.LoadMeta(ctx)
	if err != nil {
		return zero, Meta{}, err
	}
	if !ok {
		snapshot = zero
		loaded = Meta{}
	}
	if expected.ETag != "" && loaded.ETag != "" && expected.ETag != loaded.ETag {
		return zero, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, loaded.ETag)
	}
	if err := fn(&snapshot); err != nil {
		return zero, loaded, err
	}
	saved, err := b.save(ctx, snapshot, mergeMeta(loaded, expected))
	if err != nil {
		return zero, loaded, err
	}
	return snapshot, saved, nil
}

func (b Binding[T]) save(ctx context.Context, snapshot T, meta Meta) (Meta, error) {
	if b.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if err := validate(snapshot); err != nil {
		return Meta{}, err
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	meta.SnapshotID = uuid.NewString()
	meta.ETag = uuid.NewString()
	meta.UpdatedAt = now().UTC()
	saved, err := b.Store.Save(ctx, b.Ref, snapshot, meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", b.Ref.Domain, err)
	}
	return saved, nil
}

func validate(snapshot any) error {
	if v, ok := snapshot.(Validator); ok {
		return v.Validate()
	}
	return nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

// cloneSnapshot deep-copies snapshots that know how to clone themselves.
func cloneSnapshot[T any](snapshot T) T {
	if c, ok := any(snapshot).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return snapshot
}
