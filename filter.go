package assign

import (
	"fmt"
	"slices"
	"strings"
)

// FilterResult is the compatible subset for one consumer plus the rejection
// lines callers show next to it.
type FilterResult struct {
	Candidates  []*CandidateDefinition
	Explanation string
}

// Empty reports whether no candidate is compatible.
func (r FilterResult) Empty() bool {
	return len(r.Candidates) == 0
}

// Filter returns the candidates compatible with consumer, in input order.
// It has no side effects.
func Filter(candidates []*CandidateDefinition, consumer *ConsumerDefinition) FilterResult {
	if consumer.fixed() {
		return FilterResult{
			Candidates:  []*CandidateDefinition{},
			Explanation: fmt.Sprintf("%s has a fixed assignment", consumer.Name()),
		}
	}

	compatible := make([]*CandidateDefinition, 0, len(candidates))
	var lines []string
	for _, candidate := range candidates {
		ok, line := Compatible(candidate, consumer)
		if !ok {
			lines = append(lines, line)
			continue
		}
		compatible = append(compatible, candidate)
	}

	return FilterResult{
		Candidates:  compatible,
		Explanation: strings.Join(lines, "\n"),
	}
}

// Compatible applies the tag checks for one candidate. When the candidate is
// rejected the second value holds the explanation line.
func Compatible(candidate *CandidateDefinition, consumer *ConsumerDefinition) (bool, string) {
	if consumer.IgnoreOverride {
		return true, ""
	}
	if slices.ContainsFunc(candidate.Tags, func(tag string) bool { return !consumer.Allows(tag) }) {
		return false, fmt.Sprintf("%s: has tags not allowed for %s", candidate.Identity, consumer.Name())
	}
	if slices.ContainsFunc(consumer.RequireList, func(tag string) bool { return !candidate.HasTag(tag) }) {
		return false, fmt.Sprintf("%s: missing tags required by %s", candidate.Identity, consumer.Name())
	}
	return true, ""
}
