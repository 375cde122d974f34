package assign

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-assign/pkg/activity"
)

// writeDefinition writes body to dir/name and stamps it with modTime so
// staleness checks do not depend on filesystem timestamp resolution.
func writeDefinition(t *testing.T, dir, name, body string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	raiderDef   = "name: Raiders\ntags: [Raider, Supremacist]\ncapabilities: [Slavery]\n"
	pacifistDef = "name: Pacifists\ntags: [Pacifist]\ncapabilities: [Charity]\n"
	nomadDef    = "name: Nomads\ntags: [Nomadic, Raider]\ncapabilities: [Travel]\n"
)

// standardDir holds three valid definitions.
func standardDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeDefinition(t, dir, "raiders.yaml", raiderDef, epoch)
	writeDefinition(t, dir, "pacifists.yaml", pacifistDef, epoch)
	writeDefinition(t, dir, "nomads.yaml", nomadDef, epoch)
	return dir
}

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

type serviceFixture struct {
	svc     *Service
	store   *DefinitionStore
	capture *activity.CaptureHook
	ctx     context.Context
}

func newServiceFixture(t *testing.T, dir string, consumers []*ConsumerDefinition, opts ...Option) serviceFixture {
	t.Helper()
	capture := &activity.CaptureHook{}
	store := NewDefinitionStore(dir)
	opts = append([]Option{WithSeed(1, 2), WithActivityHooks(activity.Hooks{capture})}, opts...)
	svc, err := New(context.Background(), store, consumers, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return serviceFixture{svc: svc, store: store, capture: capture, ctx: context.Background()}
}

func identities(candidates []*CandidateDefinition) []string {
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, candidate.Identity)
	}
	return out
}

func removeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove %s: %v", path, err)
	}
}
