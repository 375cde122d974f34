package assign

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testConsumers() []*ConsumerDefinition {
	return []*ConsumerDefinition{
		{Identity: "pirates", Label: "Pirates", AllowList: []string{"Raider", "Supremacist", "Nomadic"}},
		{Identity: "traders", Label: "Traders", DenyList: []string{"Raider"}},
		{Identity: "hunters", Label: "Hunters", RequireList: []string{"Raider", "Nomadic"}},
		{Identity: "empire", Label: "Empire", FixedAssignment: true, RequireList: []string{"Supremacist"}},
		{Identity: "player", Owner: true},
		{Identity: "hermits", Label: "Hermits", AllowList: []string{"Ascetic"}},
	}
}

func TestResolveShortCircuits(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	cases := map[string]string{
		"player":  ReasonOwner,
		"empire":  ReasonFixed,
		"hermits": ReasonNoneCompatible,
	}
	for identity, reason := range cases {
		consumer, _ := f.svc.Consumer(identity)
		outcome := f.svc.Resolve(f.ctx, consumer)
		if outcome.Assigned() || outcome.Reason != reason {
			t.Fatalf("%s: expected defer %s, got %s %s", identity, reason, outcome.Kind, outcome.Reason)
		}
	}
	if outcome := f.svc.Resolve(f.ctx, nil); outcome.Assigned() {
		t.Fatalf("nil consumer should defer")
	}
}

func TestResolveClassicMode(t *testing.T) {
	dir := standardDir(t)
	classic := newServiceFixture(t, dir, testConsumers(), WithHostState(StaticHostState{Classic: true, Assigned: true}))
	pirates, _ := classic.svc.Consumer("pirates")
	if outcome := classic.svc.Resolve(classic.ctx, pirates); outcome.Reason != ReasonClassicMode {
		t.Fatalf("expected classic mode defer, got %s", outcome.Reason)
	}

	pending := newServiceFixture(t, dir, testConsumers(), WithHostState(StaticHostState{Classic: true}))
	pirates, _ = pending.svc.Consumer("pirates")
	if outcome := pending.svc.Resolve(pending.ctx, pirates); !outcome.Assigned() {
		t.Fatalf("classic mode without an owner assignment should resolve, got %s", outcome.Reason)
	}
}

func TestResolveWithoutCandidates(t *testing.T) {
	f := newServiceFixture(t, t.TempDir(), testConsumers())
	pirates, _ := f.svc.Consumer("pirates")
	if outcome := f.svc.Resolve(f.ctx, pirates); outcome.Reason != ReasonNoCandidates {
		t.Fatalf("expected no_candidates, got %s", outcome.Reason)
	}
}

func TestResolveRandomFromPoolOnlyPicksCompatible(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	pirates, _ := f.svc.Consumer("pirates")
	seen := map[string]int{}
	for range 200 {
		outcome := f.svc.Resolve(f.ctx, pirates)
		if !outcome.Assigned() || outcome.Reason != ReasonCompatible {
			t.Fatalf("expected compatible assignment, got %s %s", outcome.Kind, outcome.Reason)
		}
		seen[outcome.Candidate.Identity]++
	}
	if len(seen) != 2 || seen["Raiders"] == 0 || seen["Nomads"] == 0 {
		t.Fatalf("expected both Raiders and Nomads, got %v", seen)
	}
}

func TestResolveRequiredTags(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	hunters, _ := f.svc.Consumer("hunters")
	for range 50 {
		outcome := f.svc.Resolve(f.ctx, hunters)
		if !outcome.Assigned() || outcome.Candidate.Identity != "Nomads" {
			t.Fatalf("hunters must always get Nomads, got %+v", outcome)
		}
	}
}

func TestResolveSystemDefault(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	if err := f.svc.SetPreference(f.ctx, "pirates", UseSystemDefault()); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	pirates, _ := f.svc.Consumer("pirates")
	if outcome := f.svc.Resolve(f.ctx, pirates); outcome.Reason != ReasonSystemDefault {
		t.Fatalf("expected system_default, got %s", outcome.Reason)
	}

	if err := f.svc.SetDefaultPolicy(f.ctx, UseSystemDefault()); err != nil {
		t.Fatalf("set default policy: %v", err)
	}
	traders, _ := f.svc.Consumer("traders")
	if outcome := f.svc.Resolve(f.ctx, traders); outcome.Reason != ReasonSystemDefault {
		t.Fatalf("global policy should apply to traders, got %s", outcome.Reason)
	}
}

func TestResolveProbabilisticBounds(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	pirates, _ := f.svc.Consumer("pirates")

	if err := f.svc.SetPreference(f.ctx, "pirates", UseProbabilisticFallback(0)); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	for range 100 {
		if outcome := f.svc.Resolve(f.ctx, pirates); outcome.Reason != ReasonChance {
			t.Fatalf("p=0 must always defer, got %s", outcome.Reason)
		}
	}

	if err := f.svc.SetPreference(f.ctx, "pirates", UseProbabilisticFallback(1)); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	for range 100 {
		if outcome := f.svc.Resolve(f.ctx, pirates); !outcome.Assigned() {
			t.Fatalf("p=1 must always assign, got %s", outcome.Reason)
		}
	}
}

func TestResolveProbabilisticUsesSettingsChance(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	pirates, _ := f.svc.Consumer("pirates")
	if err := f.svc.SetPreference(f.ctx, "pirates", UseSettingsChance()); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := f.svc.SetPercentChance(f.ctx, 0); err != nil {
		t.Fatalf("set chance: %v", err)
	}
	if outcome := f.svc.Resolve(f.ctx, pirates); outcome.Reason != ReasonChance {
		t.Fatalf("expected chance defer, got %s", outcome.Reason)
	}
}

func TestResolvePinned(t *testing.T) {
	f := newServiceFixture(t, standardDir(t), testConsumers())
	traders, _ := f.svc.Consumer("traders")

	// Pinned candidates are taken as chosen, even outside the compatible set.
	if err := f.svc.SetPreference(f.ctx, "traders", UsePinnedSet("Raiders", "Ghosts")); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	for range 20 {
		outcome := f.svc.Resolve(f.ctx, traders)
		if outcome.Reason != ReasonPinned || outcome.Candidate.Identity != "Raiders" {
			t.Fatalf("expected pinned Raiders, got %+v", outcome)
		}
	}

	if err := f.svc.SetPreference(f.ctx, "traders", UsePinnedSet("Ghosts")); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	outcome := f.svc.Resolve(f.ctx, traders)
	if outcome.Reason != ReasonCompatible || outcome.Candidate.Identity != "Pacifists" {
		t.Fatalf("unloaded pins should fall back to the compatible pool, got %+v", outcome)
	}
}

func TestResolveIsReproducibleWithSeed(t *testing.T) {
	dir := standardDir(t)
	run := func() []string {
		f := newServiceFixture(t, dir, []*ConsumerDefinition{{Identity: "open"}}, WithSeed(7, 11))
		open, _ := f.svc.Consumer("open")
		var got []string
		for range 20 {
			got = append(got, f.svc.Resolve(f.ctx, open).Candidate.Identity)
		}
		return got
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("seeded runs differ:\n%s", diff)
	}
}

func TestPermute(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	items := []int{1, 2, 3, 4, 5, 6}

	var got []int
	for item := range permute(rng, items) {
		got = append(got, item)
	}
	sorted := slices.Sorted(slices.Values(got))
	if diff := cmp.Diff(items, sorted); diff != "" {
		t.Fatalf("permute is not a permutation:\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, items); diff != "" {
		t.Fatalf("permute modified its input:\n%s", diff)
	}

	draws := 0
	for range permute(rng, items) {
		draws++
		if draws == 2 {
			break
		}
	}
	if draws != 2 {
		t.Fatalf("early break should stop iteration, got %d", draws)
	}

	for range permute(rng, []int(nil)) {
		t.Fatalf("empty input should yield nothing")
	}
}

func TestPermuteIsUniformEnough(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	first := map[string]int{}
	for range 3000 {
		for item := range permute(rng, []string{"a", "b", "c"}) {
			first[item]++
			break
		}
	}
	for _, item := range []string{"a", "b", "c"} {
		if first[item] < 800 || first[item] > 1200 {
			t.Fatalf("first position skewed: %v", first)
		}
	}
}
