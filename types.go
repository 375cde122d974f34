package assign

import (
	"slices"
	"time"
)

// CandidateDefinition is a validated definition eligible for assignment. Values
// are created by the DefinitionStore during a load pass and must be treated as
// read-only afterwards.
type CandidateDefinition struct {
	Identity           string
	SourceFile         string
	Tags               []string
	Capabilities       []string
	VeneratedResources []string
	PreferredVariants  []string

	// Display metadata, only consumed by callers rendering candidates.
	Color       string
	Icon        string
	Description string
}

// HasTag reports whether tag is carried by the candidate.
func (c *CandidateDefinition) HasTag(tag string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Tags, tag)
}

// CandidateRecord is the raw parse result for one definition file. References
// are still unresolved names at this point.
type CandidateRecord struct {
	Name               string   `yaml:"name" json:"name"`
	Tags               []string `yaml:"tags" json:"tags"`
	Capabilities       []string `yaml:"capabilities" json:"capabilities"`
	VeneratedResources []string `yaml:"venerated,omitempty" json:"venerated,omitempty"`
	PreferredVariants  []string `yaml:"variants,omitempty" json:"variants,omitempty"`
	Color              string   `yaml:"color,omitempty" json:"color,omitempty"`
	Icon               string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Description        string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// ConsumerDefinition references a host entity that receives an assignment.
// The host owns these values; the Service only toggles FixedAssignment and
// RequireList when an ignore override is applied.
type ConsumerDefinition struct {
	Identity        string   `yaml:"identity" json:"identity"`
	Label           string   `yaml:"label,omitempty" json:"label,omitempty"`
	Owner           bool     `yaml:"owner,omitempty" json:"owner,omitempty"`
	AllowList       []string `yaml:"allow,omitempty" json:"allow,omitempty"`
	DenyList        []string `yaml:"deny,omitempty" json:"deny,omitempty"`
	RequireList     []string `yaml:"require,omitempty" json:"require,omitempty"`
	FixedAssignment bool     `yaml:"fixed,omitempty" json:"fixed,omitempty"`
	IgnoreOverride  bool     `yaml:"ignore_override,omitempty" json:"ignore_override,omitempty"`
}

// Allows reports whether tag is permitted for the consumer. An empty AllowList
// permits every tag that is not explicitly denied.
func (c *ConsumerDefinition) Allows(tag string) bool {
	if c.IgnoreOverride {
		return true
	}
	if slices.Contains(c.DenyList, tag) {
		return false
	}
	if len(c.AllowList) == 0 {
		return true
	}
	return slices.Contains(c.AllowList, tag)
}

// Name returns the label when present, falling back to the identity.
func (c *ConsumerDefinition) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Identity
}

func (c *ConsumerDefinition) fixed() bool {
	return c.FixedAssignment && !c.IgnoreOverride
}

// OutcomeKind enumerates resolution outcomes.
type OutcomeKind int

const (
	// OutcomeDefer asks the host to fall back to its own default routine.
	OutcomeDefer OutcomeKind = iota
	// OutcomeAssign carries a loaded candidate.
	OutcomeAssign
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAssign:
		return "assign"
	default:
		return "defer"
	}
}

// Reasons attached to an Outcome.
const (
	ReasonOwner          = "owner"
	ReasonFixed          = "fixed"
	ReasonClassicMode    = "classic_mode"
	ReasonNoCandidates   = "no_candidates"
	ReasonSystemDefault  = "system_default"
	ReasonChance         = "chance"
	ReasonPinned         = "pinned"
	ReasonCompatible     = "compatible"
	ReasonNoneCompatible = "none_compatible"
)

// Outcome is the result of resolving one consumer.
type Outcome struct {
	Kind      OutcomeKind
	Candidate *CandidateDefinition
	Reason    string
}

// DeferToHostDefault builds a defer outcome.
func DeferToHostDefault(reason string) Outcome {
	return Outcome{Kind: OutcomeDefer, Reason: reason}
}

// Assign builds an assignment outcome for candidate.
func Assign(candidate *CandidateDefinition, reason string) Outcome {
	return Outcome{Kind: OutcomeAssign, Candidate: candidate, Reason: reason}
}

// Assigned reports whether the outcome carries a candidate.
func (o Outcome) Assigned() bool {
	return o.Kind == OutcomeAssign && o.Candidate != nil
}

// HostState exposes the host conditions consulted before resolving.
type HostState interface {
	// ClassicMode reports whether the host runs with a single shared assignment.
	ClassicMode() bool
	// OwnerAssigned reports whether the owner consumer already holds a candidate.
	OwnerAssigned() bool
}

// StaticHostState is a fixed HostState, handy for tests and CLIs.
type StaticHostState struct {
	Classic  bool
	Assigned bool
}

// ClassicMode implements HostState.
func (s StaticHostState) ClassicMode() bool { return s.Classic }

// OwnerAssigned implements HostState.
func (s StaticHostState) OwnerAssigned() bool { return s.Assigned }

// Finalizer activates an accepted candidate before it joins the loaded set.
// Returning an error rejects the candidate for the current epoch.
type Finalizer func(*CandidateDefinition) error

// ParseOptions is passed to the Parser on every load pass.
type ParseOptions struct {
	// SuppressDuplicateWarnings silences per-reference noise while parsing;
	// the store still records one warning per rejected file.
	SuppressDuplicateWarnings bool
	// ModTime is the modification time observed during discovery.
	ModTime time.Time
}

// Parser turns one definition file into a raw record.
type Parser interface {
	Parse(path string, opts ParseOptions) (*CandidateRecord, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(path string, opts ParseOptions) (*CandidateRecord, error)

// Parse implements Parser.
func (f ParserFunc) Parse(path string, opts ParseOptions) (*CandidateRecord, error) {
	return f(path, opts)
}
