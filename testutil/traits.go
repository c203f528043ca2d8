package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"traitforge/internal/blob"
)

// TraitFixtureKeys is the fixed trait set golden tests run against. It
// includes one non-conforming name per policy edge.
var TraitFixtureKeys = []string{
	"Background/Builder Guild.png",
	"Background/Default.png",
	"Background/Trader Guild.png",
	"Background/notes.txt",

	"Body/10_Light Skin_Male.png",
	"Body/6_Dark Skin_Male.png",
	"Body/4_Olive Skin_Male.png",
	"Body/10_Light Skin_Female.png",
	"Body/6_Dark Skin_Female.png",

	"Nose_Male.png",
	"Nose_Female.png",

	"Mouth/5_Smile_Male.png",
	"Mouth/3_Frown_Male.png",
	"Mouth/5_Smile_Female.png",
	"Mouth/2_Smirk_Female.png",
	"Mouth/Grin_Male.png",

	"Eyes/5_Round_Male.png",
	"Eyes/2_Narrow_Male.png",
	"Eyes/5_Round_Female.png",
	"Eyes/3_Almond_Female.png",

	"Outfit/General/5_Tunic_Male.png",
	"Outfit/General/5_Tunic_Female.png",
	"Outfit/Trader Guild/4_Merchant Robe_Male.png",
	"Outfit/Trader Guild/4_Merchant Robe_Female.png",
	"Outfit/Trader Guild/1_Silk Vest_Male.png",
	"Outfit/Builder Guild/3_Overalls_Male.png",
	"Outfit/Builder Guild/3_Overalls_Female.png",

	"Hair/4_Buzz Cut_Male.png",
	"Hair/6_Mohawk_Male.png",
	"Hair/3_Buzz Cut_Female.png",
	"Hair/7_Bob_Female.png",

	"Headwear/General/5_Straw Hat_Male.png",
	"Headwear/General/5_Straw Hat_Female.png",
	"Headwear/General/2_Welding Mask_Male.png",
	"Headwear/Trader Guild/3_Merchant Turban_Male.png",
	"Headwear/Trader Guild/3_Merchant Turban_Female.png",
	"Headwear/Trader Guild/4_Fez_Male.png",
	"Headwear/Trader Guild/4_Fez_Female.png",
	"Headwear/Builder Guild/3_Hard Hat_Male.png",
	"Headwear/Builder Guild/2_Welding Mask_Female.png",
	"Headwear/Builder Guild/5_Cap_Male.png",

	"Hand/5_Light Hand_Male.png",
	"Hand/5_Dark Hand_Male.png",
	"Hand/5_Light Hand_Female.png",
	"Hand/5_Dark Hand_Female.png",

	"HandGear/General/3_Lantern.png",
	"HandGear/General/2_Rope.png",
	"HandGear/Trader Guild/4_Abacus.png",
	"HandGear/Trader Guild/2_Coin Purse.png",
}

// CanvasSize is the edge length of fixture images.
const CanvasSize = 2048

var (
	layerOnce sync.Once
	layerPNG  []byte
)

// LayerPNG returns a canvas-sized PNG that is transparent except for an
// opaque square, shared by every fixture key.
func LayerPNG(t testing.TB) []byte {
	t.Helper()
	layerOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			layerPNG = buf.Bytes()
		}
	})
	if layerPNG == nil {
		t.Fatalf("encode fixture layer")
	}
	return layerPNG
}

// NewTraitStore returns an in-memory store holding TraitFixtureKeys. With
// images false the blobs are placeholder bytes, enough for plan building.
func NewTraitStore(t testing.TB, images bool) *blob.MemoryStore {
	t.Helper()
	store := blob.NewMemory()
	body := []byte("png")
	if images {
		body = LayerPNG(t)
	}
	for _, key := range TraitFixtureKeys {
		if _, err := store.Put(context.Background(), key, bytes.NewReader(body), blob.PutOptions{ContentType: "image/png"}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	return store
}
