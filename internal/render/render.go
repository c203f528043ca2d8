// Package render composites layer plans into canvas-sized PNGs.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"traitforge/internal/blob"
	"traitforge/internal/observability"
)

// CanvasSize is the edge length of every rendered image. Layers are authored
// at this size and are never resized.
const CanvasSize = 2048

// ErrNoLayers is returned when there is nothing to composite, either because
// the plan was empty or because every download failed.
var ErrNoLayers = errors.New("render: no layers to composite")

// DefaultConcurrency bounds simultaneous layer downloads.
const DefaultConcurrency = 4

// Options configures a Compositor.
type Options struct {
	Concurrency int
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Compositor downloads layers from a blob store and alpha-composites them.
type Compositor struct {
	store       blob.Store
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewCompositor returns a Compositor reading layers from store.
func NewCompositor(store blob.Store, opts Options) *Compositor {
	n := opts.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	return &Compositor{
		store:       store,
		concurrency: n,
		logger:      observability.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Render fetches every layer concurrently, drops the ones that fail to
// download or decode, and draws the rest in the given order onto a
// transparent canvas. Arrival order does not affect the result.
func (c *Compositor) Render(ctx context.Context, layers []string) ([]byte, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	start := time.Now()
	decoded := make([]image.Image, len(layers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, key := range layers {
		i, key := i, key
		g.Go(func() error {
			img, err := c.fetchSafe(gctx, key)
			if err != nil {
				c.metrics.LayerDropped()
				c.logger.Warn("layer dropped", zap.String("path", key), zap.Error(err))
				return nil
			}
			decoded[i] = img
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	drawn := 0
	for i, img := range decoded {
		if img == nil {
			continue
		}
		if b := img.Bounds(); b.Dx() != CanvasSize || b.Dy() != CanvasSize {
			c.logger.Warn("layer size differs from canvas",
				zap.String("path", layers[i]),
				zap.Int("width", b.Dx()),
				zap.Int("height", b.Dy()))
		}
		draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Over)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoLayers
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("render: encode: %w", err)
	}
	c.metrics.ObserveStage("render", start)
	return buf.Bytes(), nil
}

// fetchSafe runs fetch, turning a panic in the store or decoder into an error
// so the layer is dropped instead of the process.
func (c *Compositor) fetchSafe(ctx context.Context, key string) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("fetch %s: panic: %v", key, r)
		}
	}()
	return c.fetch(ctx, key)
}

func (c *Compositor) fetch(ctx context.Context, key string) (image.Image, error) {
	_, rc, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	img, err := png.Decode(io.LimitReader(rc, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return img, nil
}

// PlaceholderColor is the flat fill of the fallback image.
var PlaceholderColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns a solid gray canvas-sized PNG. It never fails.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		canvas := image.NewRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(PlaceholderColor), image.Point{}, draw.Src)
		var buf bytes.Buffer
		if err := png.Encode(&buf, canvas); err != nil {
			panic(fmt.Sprintf("encode placeholder: %v", err))
		}
		placeholderPNG = buf.Bytes()
	})
	return append([]byte(nil), placeholderPNG...)
}
