package traits

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Policy controls how non-conforming filenames are treated at ingestion.
type Policy string

const (
	// PolicyStrict quarantines any name that does not match the schema.
	PolicyStrict Policy = "strict"
	// PolicyLenient accepts every name; an unparseable weight becomes 1.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy maps a config value to a Policy, defaulting to lenient.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown filename policy %q", s)
}

// ErrNonConforming wraps every strict-mode rejection.
var ErrNonConforming = errors.New("non-conforming trait filename")

// File is a parsed `{weight}_{trait}[_{Gender}].png` name.
type File struct {
	Name   string // the filename as listed
	Weight int
	Trait  string
	Gender Gender // empty for gender-agnostic categories
}

// ParseFilename validates name against the trait filename schema.
func ParseFilename(name string, gendered bool, policy Policy) (File, error) {
	if name == "" {
		return File{}, fmt.Errorf("%w: empty name", ErrNonConforming)
	}
	strict := policy == PolicyStrict
	ext := path.Ext(name)
	if strict && !strings.EqualFold(ext, ".png") {
		return File{}, fmt.Errorf("%w: %q is not a .png", ErrNonConforming, name)
	}
	segments := strings.Split(strings.TrimSuffix(name, ext), "_")
	f := File{Name: name, Weight: 1}

	if w, err := strconv.Atoi(segments[0]); err == nil && w >= 0 && len(segments) > 1 {
		f.Weight = w
		segments = segments[1:]
	} else if strict {
		return File{}, fmt.Errorf("%w: %q has no integer weight", ErrNonConforming, name)
	}

	if gendered && len(segments) > 1 {
		if g, ok := ParseGender(segments[len(segments)-1]); ok {
			f.Gender = g
			segments = segments[:len(segments)-1]
		}
	}
	if gendered && f.Gender == "" && strict {
		return File{}, fmt.Errorf("%w: %q has no gender tag", ErrNonConforming, name)
	}

	f.Trait = strings.TrimSpace(strings.Join(segments, "_"))
	if f.Trait == "" {
		if strict {
			return File{}, fmt.Errorf("%w: %q has no trait name", ErrNonConforming, name)
		}
		f.Trait = strings.TrimSuffix(name, ext)
	}
	return f, nil
}

// BackgroundTrait derives the display value of a background file. Backgrounds
// are not weighted, so a leading weight segment is optional.
func BackgroundTrait(name string) string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	if head, rest, ok := strings.Cut(stem, "_"); ok {
		if _, err := strconv.Atoi(head); err == nil && rest != "" {
			return rest
		}
	}
	return stem
}

// SkinTone extracts the tone token of a body filename: the second
// underscore-delimited segment without a trailing "Skin".
// `10_Light Skin_Male.png` yields "Light".
func SkinTone(name string) string {
	segments := strings.Split(name, "_")
	if len(segments) < 2 {
		return ""
	}
	seg := strings.TrimSpace(segments[1])
	if strings.HasSuffix(strings.ToLower(seg), ".png") {
		seg = seg[:len(seg)-len(".png")]
	}
	return strings.TrimSpace(strings.TrimSuffix(seg, "Skin"))
}

// IsBuzzCut reports whether a hair filename denotes the buzz-cut style.
func IsBuzzCut(name string) bool {
	return strings.Contains(strings.ToLower(name), "buzz cut")
}
