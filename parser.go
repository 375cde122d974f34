package assign

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-assign/internal/hydrate"
)

// legacyKeys maps older definition keys onto the current schema.
var legacyKeys = map[string]string{
	"memes":               "tags",
	"precepts":            "capabilities",
	"venerated_animals":   "venerated",
	"preferred_xenotypes": "variants",
}

// YAMLParser reads one YAML definition per file.
type YAMLParser struct {
	decoder *hydrate.Decoder[CandidateRecord]
	logger  *zap.Logger
}

// NewYAMLParser builds the default Parser. Extra decoder options run after the
// built-in hooks.
func NewYAMLParser(logger *zap.Logger, opts ...hydrate.DecoderOption[CandidateRecord]) *YAMLParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &YAMLParser{logger: logger}
	options := []hydrate.DecoderOption[CandidateRecord]{
		hydrate.WithPreHook[CandidateRecord](renameLegacyKeys),
		hydrate.WithPostHook[CandidateRecord](p.normalize),
	}
	options = append(options, opts...)
	p.decoder = hydrate.NewDecoder(options...)
	return p
}

// Parse implements Parser.
func (p *YAMLParser) Parse(path string, opts ParseOptions) (*CandidateRecord, error) {
	record, err := p.decoder.DecodeFile(hydrate.Context{
		Path:  path,
		Quiet: opts.SuppressDuplicateWarnings,
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func renameLegacyKeys(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	for from, to := range legacyKeys {
		value, ok := payload[from]
		if !ok {
			continue
		}
		if _, exists := payload[to]; !exists {
			payload[to] = value
		}
		delete(payload, from)
	}
	return payload, nil
}

// normalize trims names and drops repeated tags so Tags stays an ordered set.
func (p *YAMLParser) normalize(ctx hydrate.Context, record *CandidateRecord) error {
	record.Name = strings.TrimSpace(record.Name)
	tags := make([]string, 0, len(record.Tags))
	for _, tag := range record.Tags {
		tag = strings.TrimSpace(tag)
		if slices.Contains(tags, tag) {
			if !ctx.Quiet {
				p.logger.Warn("duplicate tag dropped",
					zap.String("path", ctx.Path),
					zap.String("tag", tag),
				)
			}
			continue
		}
		tags = append(tags, tag)
	}
	if len(record.Tags) > 0 {
		record.Tags = tags
	}
	return nil
}
