package traits

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the guild roster and the buzz-cut exclusive headwear per guild.
// They are part of the collection's identity: changing them changes outputs.
type Rules struct {
	Guilds []GuildRule `yaml:"guilds"`

	byName map[string]int
}

// GuildRule configures one guild.
type GuildRule struct {
	Name            string   `yaml:"name"`
	BuzzCutHeadwear []string `yaml:"buzz_cut_headwear"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules: %v", err))
	}
	return r
}

// LoadRules reads a rules document from disk; an empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(b []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(r.Guilds) == 0 {
		return nil, fmt.Errorf("rules: at least one guild required")
	}
	r.byName = make(map[string]int, len(r.Guilds))
	for i, g := range r.Guilds {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("rules: guild %d has no name", i)
		}
		if strings.EqualFold(name, General) {
			return nil, fmt.Errorf("rules: %q is reserved", General)
		}
		key := strings.ToLower(name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("rules: duplicate guild %q", name)
		}
		r.Guilds[i].Name = name
		r.byName[key] = i
	}
	return &r, nil
}

// ResolveGuild returns the canonical guild name for s, or General when s is
// empty or not a known guild.
func (r *Rules) ResolveGuild(s string) string {
	if i, ok := r.byName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r.Guilds[i].Name
	}
	return General
}

// GuildNames lists the configured guilds in declaration order.
func (r *Rules) GuildNames() []string {
	out := make([]string, len(r.Guilds))
	for i, g := range r.Guilds {
		out[i] = g.Name
	}
	return out
}

// ExclusiveFor reports whether trait is buzz-cut exclusive headwear of guild.
func (r *Rules) ExclusiveFor(guild, trait string) bool {
	i, ok := r.byName[strings.ToLower(guild)]
	if !ok {
		return false
	}
	return containsFold(r.Guilds[i].BuzzCutHeadwear, trait)
}

// ExclusiveAnywhere reports whether trait is buzz-cut exclusive for any guild.
func (r *Rules) ExclusiveAnywhere(trait string) bool {
	for _, g := range r.Guilds {
		if containsFold(g.BuzzCutHeadwear, trait) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
