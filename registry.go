package assign

// Registry answers read-only reference lookups against the host's currently
// loaded resources. It is consulted while validating parsed records.
type Registry interface {
	HasTag(name string) bool
	HasCapability(name string) bool
	HasResource(name string) bool
	HasVariant(name string) bool
}

// PermissiveRegistry resolves every non-empty reference.
type PermissiveRegistry struct{}

func (PermissiveRegistry) HasTag(name string) bool        { return name != "" }
func (PermissiveRegistry) HasCapability(name string) bool { return name != "" }
func (PermissiveRegistry) HasResource(name string) bool   { return name != "" }
func (PermissiveRegistry) HasVariant(name string) bool    { return name != "" }

// StaticRegistry resolves references against fixed name sets.
type StaticRegistry struct {
	tags         map[string]struct{}
	capabilities map[string]struct{}
	resources    map[string]struct{}
	variants     map[string]struct{}
}

// RegistryOption configures a StaticRegistry.
type RegistryOption func(*StaticRegistry)

// WithTags registers tag names.
func WithTags(names ...string) RegistryOption {
	return func(r *StaticRegistry) { addNames(r.tags, names) }
}

// WithCapabilities registers capability names.
func WithCapabilities(names ...string) RegistryOption {
	return func(r *StaticRegistry) { addNames(r.capabilities, names) }
}

// WithResources registers venerated resource names.
func WithResources(names ...string) RegistryOption {
	return func(r *StaticRegistry) { addNames(r.resources, names) }
}

// WithVariants registers preferred variant names.
func WithVariants(names ...string) RegistryOption {
	return func(r *StaticRegistry) { addNames(r.variants, names) }
}

// NewStaticRegistry builds a registry from the supplied options.
func NewStaticRegistry(opts ...RegistryOption) *StaticRegistry {
	r := &StaticRegistry{
		tags:         map[string]struct{}{},
		capabilities: map[string]struct{}{},
		resources:    map[string]struct{}{},
		variants:     map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *StaticRegistry) HasTag(name string) bool        { return has(r.tags, name) }
func (r *StaticRegistry) HasCapability(name string) bool { return has(r.capabilities, name) }
func (r *StaticRegistry) HasResource(name string) bool   { return has(r.resources, name) }
func (r *StaticRegistry) HasVariant(name string) bool    { return has(r.variants, name) }

func addNames(set map[string]struct{}, names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
}

func has(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}
