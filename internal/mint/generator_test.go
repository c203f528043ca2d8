package mint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"traitforge/internal/attributes"
	"traitforge/internal/blob"
	"traitforge/internal/compose"
	"traitforge/internal/ledger"
	"traitforge/internal/listing"
	"traitforge/internal/observability"
	"traitforge/internal/pkg/clock"
	"traitforge/internal/random"
	"traitforge/internal/render"
	"traitforge/internal/traits"
	traittest "traitforge/testutil"
)

var golden = Options{Guild: "Trader Guild", Gender: "Male", Seed: random.NumericSeed(42)}

func newGenerator(t *testing.T, store blob.Store, l ledger.Store, metrics *observability.Metrics) *Generator {
	t.Helper()
	planner, err := compose.NewPlanner(compose.Config{
		Lister:  listing.NewLister(store, listing.Options{}),
		Policy:  traits.PolicyStrict,
		Clock:   clock.NewFixed(time.UnixMilli(1_700_000_000_000)),
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	g, err := New(Config{
		Planner:  planner,
		Renderer: render.NewCompositor(store, render.Options{Metrics: metrics}),
		Ledger:   l,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	return g
}

func TestGenerateGoldenScenario(t *testing.T) {
	g := newGenerator(t, traittest.NewTraitStore(t, true), nil, nil)
	res, err := g.Generate(context.Background(), 1, golden)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []attributes.Attribute{
		{Category: "Background", Value: "Trader Guild"},
		{Category: "Body", Value: "Dark Skin"},
		{Category: "Mouth", Value: "Frown"},
		{Category: "Eyes", Value: "Round"},
		{Category: "Outfit", Value: "Silk Vest"},
		{Category: "Hair", Value: "Mohawk"},
		{Category: "Headwear", Value: "Fez"},
		{Category: "Hand", Value: "Dark Hand"},
		{Category: "Hand Gear", Value: "Abacus"},
		{Category: "Gender", Value: "Male"},
	}
	if diff := cmp.Diff(want, res.Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
	if res.Placeholder {
		t.Fatalf("expected a real composite")
	}
	img, err := png.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != render.CanvasSize || b.Dy() != render.CanvasSize {
		t.Fatalf("unexpected canvas %v", b)
	}
	sum := sha256.Sum256(res.Image)
	if res.Digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest does not match image bytes")
	}

	// the separate entry points agree with the unified one
	attrs, err := g.BuildAttributes(context.Background(), 1, golden)
	if err != nil {
		t.Fatalf("attributes: %v", err)
	}
	if diff := cmp.Diff(res.Attributes, attrs); diff != "" {
		t.Fatalf("BuildAttributes diverged (-generate +attributes):\n%s", diff)
	}
	if !bytes.Equal(g.BuildImage(context.Background(), 1, golden), res.Image) {
		t.Fatalf("BuildImage diverged from Generate")
	}
}

func TestEmptyStoreFallsBackToPlaceholder(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	g := newGenerator(t, blob.NewMemory(), nil, metrics)
	img := g.BuildImage(context.Background(), 3, golden)
	if !bytes.Equal(img, render.Placeholder()) {
		t.Fatalf("expected placeholder image")
	}
	attrs, err := g.BuildAttributes(context.Background(), 3, golden)
	if err != nil {
		t.Fatalf("attributes: %v", err)
	}
	if len(attrs) != 10 || attrs[0].Value != attributes.Unknown || attrs[6].Value != attributes.None {
		t.Fatalf("unexpected attributes %+v", attrs)
	}
	res, err := g.Generate(context.Background(), 3, golden)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !res.Placeholder || !bytes.Equal(res.Image, render.Placeholder()) {
		t.Fatalf("expected generate to flag the placeholder")
	}
	n, err := testutil.GatherAndCount(reg, "traitforge_placeholder_images_total")
	if err != nil || n != 1 {
		t.Fatalf("expected one placeholder series (render), got %d: %v", n, err)
	}
}

type panicPlanner struct{}

func (panicPlanner) Build(context.Context, int64, compose.Request) (compose.Plan, error) {
	panic("listing exploded")
}

type failingRenderer struct{ calls int }

func (r *failingRenderer) Render(context.Context, []string) ([]byte, error) {
	r.calls++
	return nil, errors.New("unreachable")
}

func TestBuildImageRecoversPanics(t *testing.T) {
	g, err := New(Config{Planner: panicPlanner{}, Renderer: &failingRenderer{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !bytes.Equal(g.BuildImage(context.Background(), 1, golden), render.Placeholder()) {
		t.Fatalf("expected placeholder after panic")
	}
}

func TestPlanErrorsPropagateFromAttributes(t *testing.T) {
	g := newGenerator(t, traittest.NewTraitStore(t, false), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.BuildAttributes(ctx, 1, golden); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to propagate, got %v", err)
	}
	if _, err := g.Generate(ctx, 1, golden); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation from generate, got %v", err)
	}
	if !bytes.Equal(g.BuildImage(ctx, 1, golden), render.Placeholder()) {
		t.Fatalf("expected placeholder when planning fails")
	}
}

func TestMintRecordsOnceAndVerifies(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	g := newGenerator(t, traittest.NewTraitStore(t, true), l, nil)
	res, rec, err := g.Mint(ctx, 1, golden)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if rec.Digest != res.Digest || rec.Seed != 43 || rec.Guild != "Trader Guild" || len(rec.Attributes) != 10 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, _, err := g.Mint(ctx, 1, golden); !errors.Is(err, ledger.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	again, stored, ok, err := g.Verify(ctx, 1)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok || stored.ID != rec.ID || rec.GenderDrawn {
		t.Fatalf("expected stored digest to match regeneration")
	}
	if diff := cmp.Diff(rec.Layers, again.Plan.Layers); diff != "" {
		t.Fatalf("regenerated layers differ (-minted +verified):\n%s", diff)
	}
	if _, _, _, err := g.Verify(ctx, 2); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyReplaysDrawnGender(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	g := newGenerator(t, traittest.NewTraitStore(t, false), l, nil)
	opts := Options{Guild: "Trader Guild", Seed: random.NumericSeed(42)}
	for token := int64(1); token <= 20; token++ {
		res, rec, err := g.Mint(ctx, token, opts)
		if err != nil {
			t.Fatalf("mint %d: %v", token, err)
		}
		if !rec.GenderDrawn || rec.Gender != string(res.Plan.Gender) {
			t.Fatalf("token %d: expected drawn gender on record, got %+v", token, rec)
		}
		if diff := cmp.Diff(ReplayOptions(rec), opts, cmp.Comparer(func(a, b random.Seed) bool {
			return random.DeriveSeed(token, a, nil) == random.DeriveSeed(token, b, nil)
		})); diff != "" {
			t.Fatalf("token %d: replay options (-replay +minted):\n%s", token, diff)
		}
		again, _, ok, err := g.Verify(ctx, token)
		if err != nil {
			t.Fatalf("verify %d: %v", token, err)
		}
		if diff := cmp.Diff(rec.Layers, again.Plan.Layers); diff != "" {
			t.Fatalf("token %d: regenerated layers differ (-minted +verified):\n%s", token, diff)
		}
		if !ok || again.Plan.Gender != res.Plan.Gender {
			t.Fatalf("token %d: expected verify to match", token)
		}
	}
}

func TestMintWithoutLedger(t *testing.T) {
	g := newGenerator(t, blob.NewMemory(), nil, nil)
	if _, _, err := g.Mint(context.Background(), 1, golden); !errors.Is(err, ErrNoLedger) {
		t.Fatalf("expected ErrNoLedger, got %v", err)
	}
}

func TestStoredSeedRoundTrips(t *testing.T) {
	for _, tc := range []struct {
		token int64
		seed  uint32
	}{{1, 43}, {5, 2}, {4294967295, 0}, {9, 4294967290}} {
		got := random.DeriveSeed(tc.token, StoredSeed(tc.token, tc.seed), nil)
		if got != tc.seed {
			t.Fatalf("token %d: expected %d, got %d", tc.token, tc.seed, got)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Renderer: &failingRenderer{}}); err == nil {
		t.Fatalf("expected planner error")
	}
	if _, err := New(Config{Planner: panicPlanner{}}); err == nil {
		t.Fatalf("expected renderer error")
	}
}

func TestMintReachesStorageOnlyThroughFacades(t *testing.T) {
	traittest.AssertImports(t, ".", traittest.Infra, traittest.Transport, traittest.Drivers)
}
