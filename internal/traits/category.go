// Package traits describes the trait categories, guilds and genders of the
// collection and the filename schema trait art is stored under.
package traits

import "strings"

// Category is one of the nine fixed trait slots. The declaration order is the
// layering order (later draws on top) and the attribute order.
type Category int

const (
	Background Category = iota
	Body
	Mouth
	Eyes
	Outfit
	Hair
	Headwear
	Hand
	HandGear
)

// Categories lists every category in layering order.
var Categories = []Category{Background, Body, Mouth, Eyes, Outfit, Hair, Headwear, Hand, HandGear}

var categoryLabels = [...]string{
	Background: "Background",
	Body:       "Body",
	Mouth:      "Mouth",
	Eyes:       "Eyes",
	Outfit:     "Outfit",
	Hair:       "Hair",
	Headwear:   "Headwear",
	Hand:       "Hand",
	HandGear:   "Hand Gear",
}

var categoryDirs = [...]string{
	Background: "Background",
	Body:       "Body",
	Mouth:      "Mouth",
	Eyes:       "Eyes",
	Outfit:     "Outfit",
	Hair:       "Hair",
	Headwear:   "Headwear",
	Hand:       "Hand",
	HandGear:   "HandGear",
}

// String returns the attribute label, e.g. "Hand Gear".
func (c Category) String() string {
	if c < Background || c > HandGear {
		return "Unknown"
	}
	return categoryLabels[c]
}

// Dir returns the top-level store directory holding the category's art.
func (c Category) Dir() string {
	if c < Background || c > HandGear {
		return ""
	}
	return categoryDirs[c]
}

// Optional reports whether the category may legitimately resolve to nothing.
func (c Category) Optional() bool { return c == Headwear || c == HandGear }

// GenderAware reports whether candidate files carry a trailing gender tag.
func (c Category) GenderAware() bool {
	switch c {
	case Body, Mouth, Eyes, Outfit, Hair, Headwear, Hand:
		return true
	}
	return false
}

// GuildAware reports whether candidates live in per-guild subfolders.
func (c Category) GuildAware() bool { return c == Outfit || c == Headwear || c == HandGear }

// Gender is the resolved gender of a generation.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// ParseGender matches s case-insensitively against the known genders.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return Male, true
	case "female":
		return Female, true
	}
	return "", false
}

// General is the guild-agnostic fallback pool and the guild unknown input resolves to.
const General = "General"

// NoseKey returns the singleton nose layer for a gender, stored at the bucket root.
func NoseKey(g Gender) string { return "Nose_" + string(g) + ".png" }
