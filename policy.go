package assign

import (
	"context"
	"iter"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
)

// Resolve decides the assignment for consumer. It never fails: every path
// that cannot produce a candidate defers to the host default.
func (s *Service) Resolve(ctx context.Context, consumer *ConsumerDefinition) Outcome {
	outcome := s.resolve(ctx, consumer)
	fields := []zap.Field{
		zap.String("outcome", outcome.Kind.String()),
		zap.String("reason", outcome.Reason),
	}
	if consumer != nil {
		fields = append(fields, zap.String("consumer", consumer.Identity))
	}
	if outcome.Assigned() {
		fields = append(fields, zap.String("candidate", outcome.Candidate.Identity))
	}
	s.logger.Debug("resolved assignment", fields...)
	return outcome
}

func (s *Service) resolve(ctx context.Context, consumer *ConsumerDefinition) Outcome {
	switch {
	case consumer == nil:
		return DeferToHostDefault(ReasonNoneCompatible)
	case consumer.Owner:
		return DeferToHostDefault(ReasonOwner)
	case consumer.fixed():
		return DeferToHostDefault(ReasonFixed)
	case s.host.ClassicMode() && s.host.OwnerAssigned():
		return DeferToHostDefault(ReasonClassicMode)
	}

	s.ensureFresh(ctx)
	candidates := s.store.GetAll()
	if len(candidates) == 0 {
		return DeferToHostDefault(ReasonNoCandidates)
	}

	settings := s.loadSettings(ctx)
	entry, ok := settings.Preference(consumer.Identity)
	if !ok || entry.Kind == PreferenceGlobal {
		entry = settings.Policy()
	}

	switch entry.Kind {
	case PreferenceSystemDefault:
		return DeferToHostDefault(ReasonSystemDefault)
	case PreferenceProbabilistic:
		chance := settings.Chance()
		if entry.Chance != nil {
			chance = *entry.Chance
		}
		if s.rng.Float64() >= chance {
			return DeferToHostDefault(ReasonChance)
		}
	case PreferencePinned:
		pool := slices.DeleteFunc(slices.Clone(candidates), func(c *CandidateDefinition) bool {
			return !slices.Contains(entry.Pinned, c.Identity)
		})
		if len(pool) > 0 {
			return Assign(pool[s.rng.IntN(len(pool))], ReasonPinned)
		}
	}

	for candidate := range permute(s.rng, candidates) {
		if ok, _ := Compatible(candidate, consumer); ok {
			return Assign(candidate, ReasonCompatible)
		}
	}
	return DeferToHostDefault(ReasonNoneCompatible)
}

// permute yields items in uniformly random order, drawing each position only
// when the consumer asks for it. Every range over the result starts a new
// permutation; items is never modified.
func permute[T any](rng *rand.Rand, items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		pool := slices.Clone(items)
		for i := len(pool) - 1; i >= 0; i-- {
			j := rng.IntN(i + 1)
			pool[i], pool[j] = pool[j], pool[i]
			if !yield(pool[i]) {
				return
			}
		}
	}
}
