// Package compose builds layer plans: the deterministic walk over the nine
// trait categories that decides which art files make up one token.
//
// Draw order is part of the output contract. Per generation the stream is
// consumed as follows, and only as follows:
//
//	gender     1 draw, only when the request has no recognised gender (< 0.5 is Male)
//	Background none
//	Body       1 pick
//	Mouth      1 pick
//	Eyes       1 pick
//	Outfit     1 folder draw (< 0.75 is the guild folder), 1 pick
//	Hair       1 pick
//	Headwear   1 attempt draw (< 0.8), then if attempted 1 folder draw and 1 pick
//	Hand       1 pick
//	Hand Gear  1 folder draw, 1 pick
//
// A pick draws even for a single candidate and does not draw for none.
package compose

import (
	"traitforge/internal/random"
	"traitforge/internal/traits"
)

// GenContext is the state carried between selectors within one generation.
type GenContext struct {
	Guild    string
	Gender   traits.Gender
	SkinTone string // set by Body, read by Hand
	BuzzCut  bool   // set by Hair, read by Headwear
}

// Pool holds the parsed candidates of one category.
type Pool struct {
	// Folder is the guild subfolder Primary was listed from; empty for flat categories.
	Folder  string
	Primary []traits.File
	// General is the fallback folder of guild-aware categories.
	General []traits.File
}

// Selection is the file a selector chose.
type Selection struct {
	Category traits.Category
	Folder   string // guild subfolder the file came from, empty for flat categories
	File     traits.File
	Path     string // full store key
}

// Trait is the human-readable value the selection contributes to attributes.
func (s Selection) Trait() string { return s.File.Trait }

// Request carries the caller-supplied generation parameters.
type Request struct {
	Guild  string
	Gender string
	Seed   random.Seed
}

// Plan is the output of one plan-building pass. Images and attributes for a
// token must both be derived from the same Plan value.
type Plan struct {
	TokenID int64
	Seed    uint32
	Guild   string
	Gender  traits.Gender
	// GenderDrawn is set when Gender came from the stream rather than the request.
	GenderDrawn bool
	Layers      []string
	Traits      map[traits.Category]string
	Selections  []Selection
}

// Selection returns the selection made for c, if any.
func (p Plan) Selection(c traits.Category) (Selection, bool) {
	for _, s := range p.Selections {
		if s.Category == c {
			return s, true
		}
	}
	return Selection{}, false
}
