package compose

import (
	"strings"

	"traitforge/internal/traits"
)

// Selector chooses at most one file for a category. Selectors are pure: the
// result depends only on their arguments.
type Selector func(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection)

const (
	guildFolderChance = 0.75
	headwearChance    = 0.8
)

// Selectors returns the selector for every category, in layering order.
func Selectors(rules *traits.Rules) map[traits.Category]Selector {
	return map[traits.Category]Selector{
		traits.Background: SelectBackground,
		traits.Body:       SelectBody,
		traits.Mouth:      flat(traits.Mouth),
		traits.Eyes:       flat(traits.Eyes),
		traits.Outfit:     SelectOutfit,
		traits.Hair:       SelectHair,
		traits.Headwear:   HeadwearSelector(rules),
		traits.Hand:       SelectHand,
		traits.HandGear:   SelectHandGear,
	}
}

// SelectBackground takes the first file naming the guild, else the first file.
func SelectBackground(gc GenContext, pool Pool, _ func() float64) (GenContext, *Selection) {
	if len(pool.Primary) == 0 {
		return gc, nil
	}
	chosen := pool.Primary[0]
	guild := strings.ToLower(gc.Guild)
	for _, f := range pool.Primary {
		if strings.Contains(strings.ToLower(f.Name), guild) {
			chosen = f
			break
		}
	}
	return gc, &Selection{Category: traits.Background, File: chosen}
}

// SelectBody picks a body and records its skin tone.
func SelectBody(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
	f, ok := pickFiles(filter(pool.Primary, byGender(gc.Gender)), next)
	if !ok {
		return gc, nil
	}
	gc.SkinTone = traits.SkinTone(f.Name)
	return gc, &Selection{Category: traits.Body, File: f}
}

func flat(c traits.Category) Selector {
	return func(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
		f, ok := pickFiles(filter(pool.Primary, byGender(gc.Gender)), next)
		if !ok {
			return gc, nil
		}
		return gc, &Selection{Category: c, File: f}
	}
}

// SelectOutfit picks a gendered outfit from the guild or General folder.
func SelectOutfit(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
	return gc, pickGuildAware(traits.Outfit, pool, byGender(gc.Gender), next)
}

// SelectHair picks a hairstyle and records whether it is a buzz cut.
func SelectHair(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
	f, ok := pickFiles(filter(pool.Primary, byGender(gc.Gender)), next)
	if !ok {
		return gc, nil
	}
	gc.BuzzCut = traits.IsBuzzCut(f.Name)
	return gc, &Selection{Category: traits.Hair, File: f}
}

// HeadwearSelector builds the headwear selector for a rule set.
//
// With a buzz cut only the guild's exclusive headwear is eligible and
// selection is always attempted; otherwise exclusive headwear of every guild
// is excluded and selection is attempted with probability 0.8.
func HeadwearSelector(rules *traits.Rules) Selector {
	return func(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
		attempt := next() < headwearChance
		if !gc.BuzzCut && !attempt {
			return gc, nil
		}
		eligible := func(f traits.File) bool {
			if f.Gender != gc.Gender {
				return false
			}
			if gc.BuzzCut {
				return rules.ExclusiveFor(gc.Guild, f.Trait)
			}
			return !rules.ExclusiveAnywhere(f.Trait)
		}
		return gc, pickGuildAware(traits.Headwear, pool, eligible, next)
	}
}

// SelectHand prefers hands matching the body's skin tone.
func SelectHand(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
	candidates := filter(pool.Primary, byGender(gc.Gender))
	if gc.SkinTone != "" {
		tone := strings.ToLower(gc.SkinTone)
		matching := filter(candidates, func(f traits.File) bool {
			return strings.Contains(strings.ToLower(f.Name), tone)
		})
		if len(matching) > 0 {
			candidates = matching
		}
	}
	f, ok := pickFiles(candidates, next)
	if !ok {
		return gc, nil
	}
	return gc, &Selection{Category: traits.Hand, File: f}
}

// SelectHandGear picks gear from the guild or General folder; gear is not gendered.
func SelectHandGear(gc GenContext, pool Pool, next func() float64) (GenContext, *Selection) {
	return gc, pickGuildAware(traits.HandGear, pool, nil, next)
}

func pickGuildAware(c traits.Category, pool Pool, keep func(traits.File) bool, next func() float64) *Selection {
	if next() < guildFolderChance {
		if f, ok := pickFiles(filter(pool.Primary, keep), next); ok {
			return &Selection{Category: c, Folder: pool.Folder, File: f}
		}
	}
	if f, ok := pickFiles(filter(pool.General, keep), next); ok {
		return &Selection{Category: c, Folder: traits.General, File: f}
	}
	return nil
}

func pickFiles(files []traits.File, next func() float64) (traits.File, bool) {
	weights := make([]int, len(files))
	for i, f := range files {
		weights[i] = f.Weight
	}
	return Pick(files, weights, next)
}

func byGender(g traits.Gender) func(traits.File) bool {
	return func(f traits.File) bool { return f.Gender == g }
}

func filter(files []traits.File, keep func(traits.File) bool) []traits.File {
	if keep == nil {
		return files
	}
	out := make([]traits.File, 0, len(files))
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
