package assign

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultExtensions lists the definition file extensions discovered by default.
var DefaultExtensions = []string{".yaml", ".yml"}

// StoreOption configures a DefinitionStore.
type StoreOption func(*DefinitionStore)

// WithParser replaces the default YAML parser.
func WithParser(parser Parser) StoreOption {
	return func(s *DefinitionStore) {
		if parser != nil {
			s.parser = parser
		}
	}
}

// WithRegistry sets the registry used to resolve record references.
func WithRegistry(registry Registry) StoreOption {
	return func(s *DefinitionStore) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithFinalizer installs the activation hook run for every accepted candidate.
func WithFinalizer(fn Finalizer) StoreOption {
	return func(s *DefinitionStore) {
		s.finalizer = fn
	}
}

// WithExtensions overrides the discovered file extensions.
func WithExtensions(exts ...string) StoreOption {
	return func(s *DefinitionStore) {
		if len(exts) == 0 {
			return
		}
		s.extensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			s.extensions = append(s.extensions, strings.ToLower(ext))
		}
	}
}

// WithStoreLogger sets the logger diagnostics are written to.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *DefinitionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReferenceWarnings controls whether parsers may report every unresolved
// reference individually. Disabled by default.
func WithReferenceWarnings(enabled bool) StoreOption {
	return func(s *DefinitionStore) {
		s.suppressDuplicates = !enabled
	}
}

// DefinitionStore loads definition files from a directory and keeps the
// valid candidates in memory until the staleness token changes.
type DefinitionStore struct {
	dir                string
	extensions         []string
	parser             Parser
	registry           Registry
	finalizer          Finalizer
	logger             *zap.Logger
	suppressDuplicates bool

	onReload []func([]*CandidateDefinition)

	candidates  []*CandidateDefinition
	token       time.Time
	loaded      bool
	passes      int
	warned      map[string]struct{}
	diagnostics []*LoadError
}

// NewDefinitionStore builds a store reading definition files from dir.
func NewDefinitionStore(dir string, opts ...StoreOption) *DefinitionStore {
	s := &DefinitionStore{
		dir:                dir,
		extensions:         slices.Clone(DefaultExtensions),
		registry:           PermissiveRegistry{},
		logger:             zap.NewNop(),
		suppressDuplicates: true,
		warned:             map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.parser == nil {
		s.parser = NewYAMLParser(s.logger)
	}
	return s
}

// Dir returns the directory scanned for definition files.
func (s *DefinitionStore) Dir() string {
	return s.dir
}

// OnReload registers fn to run at the start of every parse pass, before the
// candidate set is cleared. The Result Cache hooks in here.
func (s *DefinitionStore) OnReload(fn func(previous []*CandidateDefinition)) {
	if fn != nil {
		s.onReload = append(s.onReload, fn)
	}
}

// EnsureFresh reloads the candidate set when the staleness token changed and
// reports whether a parse pass ran. It never fails: unreadable or incomplete
// files are skipped and recorded as diagnostics.
func (s *DefinitionStore) EnsureFresh() bool {
	files, latest := s.discover()
	if len(files) == 0 {
		s.reset()
		s.warnOnce(s.dir, &LoadError{Path: s.dir, Reason: RejectNoDefinitions, Err: ErrNoDefinitions})
		return false
	}

	if s.loaded && latest.Equal(s.token) {
		return false
	}

	s.load(files, latest)
	return true
}

// GetAll returns the current candidate set in load order. It never performs
// I/O; call EnsureFresh first.
func (s *DefinitionStore) GetAll() []*CandidateDefinition {
	return slices.Clone(s.candidates)
}

// Lookup returns the loaded candidate named identity.
func (s *DefinitionStore) Lookup(identity string) (*CandidateDefinition, bool) {
	for _, candidate := range s.candidates {
		if candidate.Identity == identity {
			return candidate, true
		}
	}
	return nil, false
}

// LoadPasses returns how many parse passes ran since construction.
func (s *DefinitionStore) LoadPasses() int {
	return s.passes
}

// Token returns the staleness token of the loaded set.
func (s *DefinitionStore) Token() time.Time {
	return s.token
}

// Diagnostics returns the warnings recorded during the current epoch.
func (s *DefinitionStore) Diagnostics() []*LoadError {
	return slices.Clone(s.diagnostics)
}

// Invalidate forces the next EnsureFresh to run a parse pass.
func (s *DefinitionStore) Invalidate() {
	s.loaded = false
	s.token = time.Time{}
}

type discoveredFile struct {
	path    string
	modTime time.Time
}

func (s *DefinitionStore) discover() ([]discoveredFile, time.Time) {
	var latest time.Time
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("definition directory unreadable", zap.String("dir", s.dir), zap.Error(err))
		}
		return nil, latest
	}

	files := make([]discoveredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(s.extensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		files = append(files, discoveredFile{path: filepath.Join(s.dir, entry.Name()), modTime: info.ModTime()})
	}
	return files, latest
}

func (s *DefinitionStore) reset() {
	if s.loaded || len(s.candidates) > 0 {
		s.notifyReload()
		s.beginEpoch()
	}
	s.candidates = nil
	s.loaded = false
	s.token = time.Time{}
}

func (s *DefinitionStore) beginEpoch() {
	s.warned = map[string]struct{}{}
	s.diagnostics = nil
}

func (s *DefinitionStore) notifyReload() {
	previous := s.candidates
	for _, fn := range s.onReload {
		fn(previous)
	}
}

func (s *DefinitionStore) load(files []discoveredFile, token time.Time) {
	s.notifyReload()
	s.beginEpoch()
	s.candidates = nil
	s.passes++

	s.logger.Info("loading definitions into cache",
		zap.String("dir", s.dir),
		zap.Int("files", len(files)),
		zap.Time("token", token),
	)

	loaded := make([]*CandidateDefinition, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		record, err := s.parser.Parse(file.path, ParseOptions{
			SuppressDuplicateWarnings: s.suppressDuplicates,
			ModTime:                   file.modTime,
		})
		if err != nil || record == nil {
			s.warnOnce(file.path, &LoadError{Path: file.path, Reason: RejectUnreadable, Err: err})
			continue
		}

		if rejection := s.validate(file.path, record); rejection != nil {
			s.warnOnce(file.path, rejection)
			continue
		}

		if _, dup := seen[record.Name]; dup {
			s.logger.Debug("duplicate definition skipped",
				zap.String("identity", record.Name),
				zap.String("path", file.path),
			)
			continue
		}

		candidate := newCandidate(file.path, record)
		if s.finalizer != nil {
			if err := s.finalizer(candidate); err != nil {
				s.warnOnce(file.path, &LoadError{
					Path:     file.path,
					Identity: candidate.Identity,
					Reason:   RejectFinalizeFailed,
					Err:      err,
				})
				continue
			}
		}

		seen[candidate.Identity] = struct{}{}
		loaded = append(loaded, candidate)
		s.logger.Debug("definition added", zap.String("identity", candidate.Identity))
	}

	s.candidates = loaded
	s.token = token
	s.loaded = true
}

func (s *DefinitionStore) validate(path string, record *CandidateRecord) *LoadError {
	reject := func(reason RejectReason, ref string) *LoadError {
		return &LoadError{Path: path, Identity: record.Name, Reason: reason, Ref: ref}
	}

	if strings.TrimSpace(record.Name) == "" {
		return reject(RejectMissingIdentity, "")
	}
	if len(record.Tags) == 0 {
		return reject(RejectMissingTags, "")
	}
	if ref, ok := firstUnresolved(record.Tags, s.registry.HasTag); !ok {
		return reject(RejectUnresolvedTag, ref)
	}
	if len(record.Capabilities) == 0 {
		return reject(RejectMissingCapabilities, "")
	}
	if ref, ok := firstUnresolved(record.Capabilities, s.registry.HasCapability); !ok {
		return reject(RejectUnresolvedCapability, ref)
	}
	if ref, ok := firstUnresolved(record.VeneratedResources, s.registry.HasResource); !ok {
		return reject(RejectUnresolvedResource, ref)
	}
	if ref, ok := firstUnresolved(record.PreferredVariants, s.registry.HasVariant); !ok {
		return reject(RejectUnresolvedVariant, ref)
	}
	return nil
}

func firstUnresolved(refs []string, resolves func(string) bool) (string, bool) {
	for _, ref := range refs {
		if !resolves(ref) {
			return ref, false
		}
	}
	return "", true
}

// warnOnce records a diagnostic at most once per key within the epoch.
func (s *DefinitionStore) warnOnce(key string, diag *LoadError) {
	if _, ok := s.warned[key]; ok {
		return
	}
	s.warned[key] = struct{}{}
	s.diagnostics = append(s.diagnostics, diag)
	s.logger.Warn(diag.Error(),
		zap.String("path", diag.Path),
		zap.String("reason", string(diag.Reason)),
	)
}

func newCandidate(path string, record *CandidateRecord) *CandidateDefinition {
	base := filepath.Base(path)
	return &CandidateDefinition{
		Identity:           record.Name,
		SourceFile:         strings.TrimSuffix(base, filepath.Ext(base)),
		Tags:               slices.Clone(record.Tags),
		Capabilities:       slices.Clone(record.Capabilities),
		VeneratedResources: slices.Clone(record.VeneratedResources),
		PreferredVariants:  slices.Clone(record.PreferredVariants),
		Color:              record.Color,
		Icon:               record.Icon,
		Description:        record.Description,
	}
}
