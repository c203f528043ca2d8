package compose

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"traitforge/internal/observability"
	"traitforge/internal/pkg/clock"
	"traitforge/internal/random"
	"traitforge/internal/traits"
)

// Lister lists the filenames directly under a store directory. Listing
// failures surface as an empty result.
type Lister interface {
	List(ctx context.Context, dir string) []string
}

// Config wires a Planner.
type Config struct {
	Lister  Lister
	Rules   *traits.Rules // nil uses traits.DefaultRules
	Policy  traits.Policy // empty means lenient
	Clock   clock.Clock   // used only for unseeded requests
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Planner builds layer plans.
type Planner struct {
	lister    Lister
	rules     *traits.Rules
	policy    traits.Policy
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
	selectors map[traits.Category]Selector
}

// NewPlanner validates cfg and returns a Planner.
func NewPlanner(cfg Config) (*Planner, error) {
	if cfg.Lister == nil {
		return nil, errors.New("compose: lister is required")
	}
	rules := cfg.Rules
	if rules == nil {
		rules = traits.DefaultRules()
	}
	policy := cfg.Policy
	if policy == "" {
		policy = traits.PolicyLenient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Planner{
		lister:    cfg.Lister,
		rules:     rules,
		policy:    policy,
		clock:     clk,
		logger:    observability.OrNop(cfg.Logger),
		metrics:   cfg.Metrics,
		selectors: Selectors(rules),
	}, nil
}

// Rules returns the rule set the planner applies.
func (p *Planner) Rules() *traits.Rules { return p.rules }

// Build runs the category selectors in order and returns the resulting plan.
// It fails only when ctx is done.
func (p *Planner) Build(ctx context.Context, tokenID int64, req Request) (Plan, error) {
	seed := random.DeriveSeed(tokenID, req.Seed, p.clock)
	stream := random.NewStream(seed)

	gc := GenContext{Guild: p.rules.ResolveGuild(req.Guild)}
	g, explicit := traits.ParseGender(req.Gender)
	if explicit {
		gc.Gender = g
	} else {
		gc.Gender = traits.Female
		if stream.Float64() < 0.5 {
			gc.Gender = traits.Male
		}
		p.logger.Debug("gender resolved from seed", zap.Int64("token", tokenID), zap.String("gender", string(gc.Gender)))
	}

	plan := Plan{
		TokenID:     tokenID,
		Seed:        seed,
		Guild:       gc.Guild,
		Gender:      gc.Gender,
		GenderDrawn: !explicit,
		Layers:      []string{},
		Traits:      make(map[traits.Category]string, len(traits.Categories)),
	}
	for _, c := range traits.Categories {
		if err := ctx.Err(); err != nil {
			return Plan{}, fmt.Errorf("build plan for token %d: %w", tokenID, err)
		}
		pool := p.pool(ctx, c, gc.Guild)
		var sel *Selection
		gc, sel = p.selectors[c](gc, pool, stream.Float64)
		if sel != nil {
			sel.Path = layerPath(c, sel.Folder, sel.File.Name)
			plan.Layers = append(plan.Layers, sel.Path)
			plan.Traits[c] = sel.Trait()
			plan.Selections = append(plan.Selections, *sel)
		}
		if c == traits.Body {
			plan.Layers = append(plan.Layers, traits.NoseKey(gc.Gender))
		}
	}
	p.logger.Debug("plan built",
		zap.Int64("token", tokenID),
		zap.Uint32("seed", seed),
		zap.String("guild", plan.Guild),
		zap.Int("layers", len(plan.Layers)),
		zap.Int("draws", stream.Draws()))
	return plan, nil
}

func (p *Planner) pool(ctx context.Context, c traits.Category, guild string) Pool {
	if !c.GuildAware() {
		return Pool{Primary: p.parse(c, p.lister.List(ctx, c.Dir()))}
	}
	general := p.parse(c, p.lister.List(ctx, path.Join(c.Dir(), traits.General)))
	pool := Pool{Folder: guild, General: general, Primary: general}
	if guild != traits.General {
		pool.Primary = p.parse(c, p.lister.List(ctx, path.Join(c.Dir(), guild)))
	}
	return pool
}

// parse validates listed names, quarantining the ones that do not conform.
func (p *Planner) parse(c traits.Category, names []string) []traits.File {
	files := make([]traits.File, 0, len(names))
	for _, name := range names {
		f, err := p.parseOne(c, name)
		if err != nil {
			p.metrics.Quarantined(c.String())
			p.logger.Warn("trait file quarantined",
				zap.String("category", c.String()),
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		files = append(files, f)
	}
	return files
}

func (p *Planner) parseOne(c traits.Category, name string) (traits.File, error) {
	if c != traits.Background {
		return traits.ParseFilename(name, c.GenderAware(), p.policy)
	}
	if p.policy == traits.PolicyStrict && !strings.EqualFold(path.Ext(name), ".png") {
		return traits.File{}, fmt.Errorf("%w: %q is not a .png", traits.ErrNonConforming, name)
	}
	return traits.File{Name: name, Weight: 1, Trait: traits.BackgroundTrait(name)}, nil
}

func layerPath(c traits.Category, folder, name string) string {
	if folder == "" {
		return c.Dir() + "/" + name
	}
	return c.Dir() + "/" + folder + "/" + name
}
