// Package mint turns a token request into its image and attributes and
// records minted tokens in the ledger.
//
// BuildImage never fails: any plan, render or runtime error yields the gray
// placeholder. BuildAttributes and Generate return plan errors to the caller
// so attributes are never fabricated.
package mint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"traitforge/internal/attributes"
	"traitforge/internal/compose"
	"traitforge/internal/ledger"
	"traitforge/internal/observability"
	"traitforge/internal/random"
	"traitforge/internal/render"
)

// ErrNoLedger is returned by ledger operations when none is configured.
var ErrNoLedger = errors.New("mint: no ledger configured")

// Placeholder reasons reported to metrics.
const (
	ReasonPlan   = "plan"
	ReasonRender = "render"
	ReasonPanic  = "panic"
)

// PlanBuilder builds layer plans.
type PlanBuilder interface {
	Build(ctx context.Context, tokenID int64, req compose.Request) (compose.Plan, error)
}

// Renderer composites a layer list into PNG bytes.
type Renderer interface {
	Render(ctx context.Context, layers []string) ([]byte, error)
}

// Options are the caller-supplied generation inputs.
type Options struct {
	Guild  string
	Gender string
	Seed   random.Seed
}

func (o Options) request() compose.Request {
	return compose.Request{Guild: o.Guild, Gender: o.Gender, Seed: o.Seed}
}

// Result is the outcome of one unified generation.
type Result struct {
	Plan        compose.Plan
	Image       []byte
	Attributes  []attributes.Attribute
	Digest      string
	Placeholder bool
}

// Config wires a Generator. Ledger may be nil.
type Config struct {
	Planner  PlanBuilder
	Renderer Renderer
	Ledger   ledger.Store
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Generator produces token images and attributes.
type Generator struct {
	planner  PlanBuilder
	renderer Renderer
	ledger   ledger.Store
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Planner == nil {
		return nil, errors.New("mint: planner is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("mint: renderer is required")
	}
	return &Generator{
		planner:  cfg.Planner,
		renderer: cfg.Renderer,
		ledger:   cfg.Ledger,
		logger:   observability.OrNop(cfg.Logger),
		metrics:  cfg.Metrics,
		tracer:   observability.Tracer(),
	}, nil
}

// Ledger returns the configured ledger, or nil.
func (g *Generator) Ledger() ledger.Store { return g.ledger }

func (g *Generator) start(ctx context.Context, name string, tokenID int64, opts Options) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("token.id", tokenID),
		attribute.String("token.guild", opts.Guild),
		attribute.String("token.gender", opts.Gender),
	))
}

func (g *Generator) plan(ctx context.Context, tokenID int64, opts Options) (compose.Plan, error) {
	start := time.Now()
	plan, err := g.planner.Build(ctx, tokenID, opts.request())
	g.metrics.ObserveStage("plan", start)
	if err != nil {
		return compose.Plan{}, fmt.Errorf("plan token %d: %w", tokenID, err)
	}
	return plan, nil
}

// renderSafe composites plan layers, substituting the placeholder on error.
func (g *Generator) renderSafe(ctx context.Context, plan compose.Plan) ([]byte, bool) {
	img, err := g.renderer.Render(ctx, plan.Layers)
	if err != nil {
		g.fallback(plan.TokenID, ReasonRender, err)
		return render.Placeholder(), true
	}
	return img, false
}

func (g *Generator) fallback(tokenID int64, reason string, err error) {
	g.logger.Warn("serving placeholder image",
		zap.Int64("token", tokenID),
		zap.String("reason", reason),
		zap.Error(err))
	g.metrics.Placeholder(reason)
}

// BuildImage returns PNG bytes for tokenID. It always returns a valid image.
func (g *Generator) BuildImage(ctx context.Context, tokenID int64, opts Options) (img []byte) {
	ctx, span := g.start(ctx, "mint.BuildImage", tokenID, opts)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			span.RecordError(err)
			g.fallback(tokenID, ReasonPanic, err)
			img = render.Placeholder()
		}
	}()
	plan, err := g.plan(ctx, tokenID, opts)
	if err != nil {
		span.RecordError(err)
		g.fallback(tokenID, ReasonPlan, err)
		return render.Placeholder()
	}
	img, placeholder := g.renderSafe(ctx, plan)
	span.SetAttributes(attribute.Bool("image.placeholder", placeholder), attribute.Int("image.layers", len(plan.Layers)))
	return img
}

// BuildAttributes returns the attribute list for tokenID. Plan errors are
// returned unchanged in meaning; no fallback list is produced.
func (g *Generator) BuildAttributes(ctx context.Context, tokenID int64, opts Options) ([]attributes.Attribute, error) {
	ctx, span := g.start(ctx, "mint.BuildAttributes", tokenID, opts)
	defer span.End()
	plan, err := g.plan(ctx, tokenID, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}
	return attributes.Export(plan), nil
}

// Generate builds one plan and derives both the image and the attributes
// from it.
func (g *Generator) Generate(ctx context.Context, tokenID int64, opts Options) (Result, error) {
	ctx, span := g.start(ctx, "mint.Generate", tokenID, opts)
	defer span.End()
	plan, err := g.plan(ctx, tokenID, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return Result{}, err
	}
	img, placeholder := g.renderSafe(ctx, plan)
	sum := sha256.Sum256(img)
	res := Result{
		Plan:        plan,
		Image:       img,
		Attributes:  attributes.Export(plan),
		Digest:      hex.EncodeToString(sum[:]),
		Placeholder: placeholder,
	}
	span.SetAttributes(attribute.String("image.digest", res.Digest), attribute.Bool("image.placeholder", placeholder))
	return res, nil
}

// Mint generates tokenID and records it. A token can be minted once;
// a second attempt returns an error wrapping ledger.ErrExists.
func (g *Generator) Mint(ctx context.Context, tokenID int64, opts Options) (Result, ledger.Record, error) {
	if g.ledger == nil {
		return Result{}, ledger.Record{}, ErrNoLedger
	}
	if _, err := g.ledger.Get(ctx, tokenID); err == nil {
		return Result{}, ledger.Record{}, fmt.Errorf("mint token %d: %w", tokenID, ledger.ErrExists)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return Result{}, ledger.Record{}, fmt.Errorf("mint token %d: %w", tokenID, err)
	}
	res, err := g.Generate(ctx, tokenID, opts)
	if err != nil {
		return Result{}, ledger.Record{}, err
	}
	rec, err := g.ledger.Put(ctx, recordFor(res))
	if err != nil {
		return Result{}, ledger.Record{}, fmt.Errorf("mint token %d: %w", tokenID, err)
	}
	g.logger.Info("token minted",
		zap.Int64("token", tokenID),
		zap.String("guild", rec.Guild),
		zap.String("gender", rec.Gender),
		zap.String("digest", rec.Digest),
		zap.Bool("placeholder", rec.Placeholder))
	return res, rec, nil
}

// Verify regenerates a minted token from its stored inputs and reports
// whether the image still matches the recorded digest. A gender drawn at
// mint time is drawn again so the stream is consumed identically.
func (g *Generator) Verify(ctx context.Context, tokenID int64) (Result, ledger.Record, bool, error) {
	if g.ledger == nil {
		return Result{}, ledger.Record{}, false, ErrNoLedger
	}
	rec, err := g.ledger.Get(ctx, tokenID)
	if err != nil {
		return Result{}, ledger.Record{}, false, fmt.Errorf("verify token %d: %w", tokenID, err)
	}
	res, err := g.Generate(ctx, tokenID, ReplayOptions(rec))
	if err != nil {
		return Result{}, rec, false, err
	}
	return res, rec, res.Digest == rec.Digest, nil
}

// ReplayOptions rebuilds the request that produced rec.
func ReplayOptions(rec ledger.Record) Options {
	opts := Options{Guild: rec.Guild, Gender: rec.Gender, Seed: StoredSeed(rec.TokenID, rec.Seed)}
	if rec.GenderDrawn {
		opts.Gender = ""
	}
	return opts
}

// StoredSeed returns the seed input that makes a plan for tokenID use the
// recorded stream seed again.
func StoredSeed(tokenID int64, streamSeed uint32) random.Seed {
	return random.NumericSeed(int64(streamSeed - uint32(tokenID)))
}

func recordFor(res Result) ledger.Record {
	attrs := make([]ledger.Attribute, len(res.Attributes))
	for i, a := range res.Attributes {
		attrs[i] = ledger.Attribute{Category: a.Category, Value: a.Value}
	}
	layers := append([]string(nil), res.Plan.Layers...)
	return ledger.Record{
		TokenID:     res.Plan.TokenID,
		Guild:       res.Plan.Guild,
		Gender:      string(res.Plan.Gender),
		GenderDrawn: res.Plan.GenderDrawn,
		Seed:        res.Plan.Seed,
		Layers:      layers,
		Attributes:  attrs,
		Digest:      res.Digest,
		Placeholder: res.Placeholder,
	}
}
