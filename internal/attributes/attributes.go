// Package attributes projects a layer plan onto the externally visible,
// fixed-order attribute list.
package attributes

import (
	"traitforge/internal/compose"
	"traitforge/internal/traits"
)

const (
	// None marks an optional category that resolved to nothing.
	None = "None"
	// Unknown marks a required category that resolved to nothing.
	Unknown = "Unknown"
	// GenderCategory labels the trailing gender entry.
	GenderCategory = "Gender"
)

// Attribute is one {trait_type, value} pair of token metadata.
type Attribute struct {
	Category string `json:"trait_type"`
	Value    string `json:"value"`
}

// Export returns one entry per category in layering order followed by the
// gender, so the result always has len(traits.Categories)+1 entries.
func Export(plan compose.Plan) []Attribute {
	out := make([]Attribute, 0, len(traits.Categories)+1)
	for _, c := range traits.Categories {
		v, ok := plan.Traits[c]
		if !ok || v == "" {
			v = Unknown
			if c.Optional() {
				v = None
			}
		}
		out = append(out, Attribute{Category: c.String(), Value: v})
	}
	return append(out, Attribute{Category: GenderCategory, Value: string(plan.Gender)})
}
