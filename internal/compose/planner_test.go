package compose

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"traitforge/internal/blob"
	"traitforge/internal/listing"
	"traitforge/internal/pkg/clock"
	"traitforge/internal/random"
	"traitforge/internal/traits"
	"traitforge/testutil"
)

func newPlanner(t *testing.T, store blob.Store, policy traits.Policy) *Planner {
	t.Helper()
	p, err := NewPlanner(Config{
		Lister: listing.NewLister(store, listing.Options{}),
		Policy: policy,
		Clock:  clock.NewFixed(time.UnixMilli(1_700_000_000_000)),
	})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	return p
}

func TestBuildGoldenTraderGuild(t *testing.T) {
	p := newPlanner(t, testutil.NewTraitStore(t, false), traits.PolicyStrict)
	plan, err := p.Build(context.Background(), 1, Request{Guild: "Trader Guild", Gender: "Male", Seed: random.NumericSeed(42)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wantLayers := []string{
		"Background/Trader Guild.png",
		"Body/6_Dark Skin_Male.png",
		"Nose_Male.png",
		"Mouth/3_Frown_Male.png",
		"Eyes/5_Round_Male.png",
		"Outfit/Trader Guild/1_Silk Vest_Male.png",
		"Hair/6_Mohawk_Male.png",
		"Headwear/Trader Guild/4_Fez_Male.png",
		"Hand/5_Dark Hand_Male.png",
		"HandGear/Trader Guild/4_Abacus.png",
	}
	if diff := cmp.Diff(wantLayers, plan.Layers); diff != "" {
		t.Fatalf("layers mismatch (-want +got):\n%s", diff)
	}
	wantTraits := map[traits.Category]string{
		traits.Background: "Trader Guild",
		traits.Body:       "Dark Skin",
		traits.Mouth:      "Frown",
		traits.Eyes:       "Round",
		traits.Outfit:     "Silk Vest",
		traits.Hair:       "Mohawk",
		traits.Headwear:   "Fez",
		traits.Hand:       "Dark Hand",
		traits.HandGear:   "Abacus",
	}
	if diff := cmp.Diff(wantTraits, plan.Traits); diff != "" {
		t.Fatalf("traits mismatch (-want +got):\n%s", diff)
	}
	if plan.Seed != 43 || plan.Gender != traits.Male || plan.Guild != "Trader Guild" {
		t.Fatalf("unexpected plan header %+v", plan)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	store := testutil.NewTraitStore(t, false)
	a := newPlanner(t, store, traits.PolicyStrict)
	b := newPlanner(t, store, traits.PolicyStrict)
	for token := int64(1); token <= 50; token++ {
		req := Request{Guild: "builder guild", Seed: random.NumericSeed(7)}
		p1, err := a.Build(context.Background(), token, req)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		p2, err := b.Build(context.Background(), token, req)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if diff := cmp.Diff(p1, p2); diff != "" {
			t.Fatalf("token %d diverged (-first +second):\n%s", token, diff)
		}
	}
}

func TestBuildInvariantsAcrossSeeds(t *testing.T) {
	p := newPlanner(t, testutil.NewTraitStore(t, false), traits.PolicyStrict)
	rules := p.Rules()
	var sawBuzzHeadwear, sawPlainHeadwear, sawSkipped bool
	for _, guild := range []string{"Trader Guild", "Builder Guild", "Miner Guild", "", "Unknown Guild"} {
		for _, gender := range []string{"Male", "female", ""} {
			for token := int64(0); token < 120; token++ {
				plan, err := p.Build(context.Background(), token, Request{Guild: guild, Gender: gender, Seed: random.NumericSeed(99)})
				if err != nil {
					t.Fatalf("build: %v", err)
				}
				for _, sel := range plan.Selections {
					if sel.Category.GenderAware() && sel.File.Gender != plan.Gender {
						t.Fatalf("%s picked %s for %s plan", sel.Category, sel.File.Name, plan.Gender)
					}
					if strings.HasPrefix(sel.File.Name, "Grin") {
						t.Fatalf("quarantined file selected: %s", sel.Path)
					}
				}
				hair, hasHair := plan.Selection(traits.Hair)
				buzz := hasHair && traits.IsBuzzCut(hair.File.Name)
				if hw, ok := plan.Selection(traits.Headwear); ok {
					if buzz && !rules.ExclusiveFor(plan.Guild, hw.Trait()) {
						t.Fatalf("buzz cut wore non-exclusive %s in %s", hw.Trait(), plan.Guild)
					}
					if !buzz && rules.ExclusiveAnywhere(hw.Trait()) {
						t.Fatalf("exclusive %s worn without buzz cut", hw.Trait())
					}
					if buzz {
						sawBuzzHeadwear = true
					} else {
						sawPlainHeadwear = true
					}
				} else if !buzz {
					sawSkipped = true
				}
				if plan.Layers[2] != traits.NoseKey(plan.Gender) || !strings.HasPrefix(plan.Layers[1], "Body/") {
					t.Fatalf("nose must follow body: %v", plan.Layers)
				}
				if len(plan.Traits) != len(plan.Selections) || len(plan.Layers) != len(plan.Selections)+1 {
					t.Fatalf("plan shape mismatch: %+v", plan)
				}
			}
		}
	}
	if !sawBuzzHeadwear || !sawPlainHeadwear || !sawSkipped {
		t.Fatalf("fixture did not cover headwear branches: buzz=%v plain=%v skipped=%v", sawBuzzHeadwear, sawPlainHeadwear, sawSkipped)
	}
}

func TestBuildWithEmptyStore(t *testing.T) {
	p := newPlanner(t, blob.NewMemory(), traits.PolicyStrict)
	plan, err := p.Build(context.Background(), 3, Request{Gender: "Female", Seed: random.NumericSeed(1)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"Nose_Female.png"}, plan.Layers); diff != "" {
		t.Fatalf("layers (-want +got):\n%s", diff)
	}
	if len(plan.Traits) != 0 || plan.Guild != traits.General {
		t.Fatalf("expected empty traits and General guild, got %+v", plan)
	}
}

func TestBuildResolvesMissingGenderFromStream(t *testing.T) {
	p := newPlanner(t, testutil.NewTraitStore(t, false), traits.PolicyStrict)
	seen := map[traits.Gender]bool{}
	for token := int64(0); token < 20; token++ {
		plan, err := p.Build(context.Background(), token, Request{Gender: "other", Seed: random.NumericSeed(5)})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		want := traits.Female
		if random.NewStream(uint32(token+5)).Float64() < 0.5 {
			want = traits.Male
		}
		if plan.Gender != want || !plan.GenderDrawn {
			t.Fatalf("token %d: gender %s (drawn %v), want drawn %s", token, plan.Gender, plan.GenderDrawn, want)
		}
		seen[plan.Gender] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both genders across tokens, got %v", seen)
	}
	plan, err := p.Build(context.Background(), 1, Request{Gender: "female", Seed: random.NumericSeed(5)})
	if err != nil || plan.GenderDrawn || plan.Gender != traits.Female {
		t.Fatalf("explicit gender should not be drawn: %+v %v", plan, err)
	}
}

func TestBuildUnseededUsesClock(t *testing.T) {
	store := testutil.NewTraitStore(t, false)
	p := newPlanner(t, store, traits.PolicyStrict)
	a, _ := p.Build(context.Background(), 9, Request{Gender: "Male"})
	b, _ := p.Build(context.Background(), 9, Request{Gender: "Male"})
	ms := int64(1_700_000_000_000)
	if a.Seed != b.Seed || a.Seed != uint32(9+ms) {
		t.Fatalf("expected clock-derived seed, got %d and %d", a.Seed, b.Seed)
	}
}

func TestBuildHonoursCancellation(t *testing.T) {
	p := newPlanner(t, testutil.NewTraitStore(t, false), traits.PolicyStrict)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Build(ctx, 1, Request{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestFilenamePolicy(t *testing.T) {
	store := testutil.NewTraitStore(t, false)
	strict := newPlanner(t, store, traits.PolicyStrict)
	lenient := newPlanner(t, store, traits.PolicyLenient)

	if got := len(strict.pool(context.Background(), traits.Mouth, traits.General).Primary); got != 4 {
		t.Fatalf("strict mouth pool: got %d files", got)
	}
	pool := lenient.pool(context.Background(), traits.Mouth, traits.General)
	var grin *traits.File
	for i := range pool.Primary {
		if pool.Primary[i].Name == "Grin_Male.png" {
			grin = &pool.Primary[i]
		}
	}
	if grin == nil || grin.Weight != 1 || grin.Gender != traits.Male {
		t.Fatalf("lenient policy should default weight to 1, got %+v", grin)
	}
	if got := len(strict.pool(context.Background(), traits.Background, "").Primary); got != 3 {
		t.Fatalf("strict background pool should drop non-png, got %d", got)
	}
	if got := len(lenient.pool(context.Background(), traits.Background, "").Primary); got != 4 {
		t.Fatalf("lenient background pool should keep every file, got %d", got)
	}
}

func TestDefaultPolicyPicksUnweightedFiles(t *testing.T) {
	store := blob.NewMemory()
	if _, err := store.Put(context.Background(), "Mouth/Grin_Male.png", strings.NewReader("png"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p := newPlanner(t, store, "")
	plan, err := p.Build(context.Background(), 1, Request{Gender: "Male", Seed: random.NumericSeed(7)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"Nose_Male.png", "Mouth/Grin_Male.png"}, plan.Layers); diff != "" {
		t.Fatalf("layers (-want +got):\n%s", diff)
	}
	if plan.Traits[traits.Mouth] != "Grin" {
		t.Fatalf("expected weight-1 mouth to be picked, got %v", plan.Traits)
	}
}

func TestNewPlannerRequiresLister(t *testing.T) {
	if _, err := NewPlanner(Config{}); err == nil {
		t.Fatalf("expected error without lister")
	}
}

func TestComposeImportsNoStorageOrTransport(t *testing.T) {
	testutil.AssertImports(t, ".", testutil.Infra, testutil.Transport, testutil.Drivers)
}
