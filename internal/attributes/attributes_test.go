package attributes

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"traitforge/internal/compose"
	"traitforge/internal/traits"
)

func TestExportFillsMissingCategories(t *testing.T) {
	plan := compose.Plan{
		Gender: traits.Female,
		Traits: map[traits.Category]string{
			traits.Background: "Trader Guild",
			traits.Body:       "Light Skin",
			traits.Hair:       "Bob",
		},
	}
	want := []Attribute{
		{"Background", "Trader Guild"},
		{"Body", "Light Skin"},
		{"Mouth", Unknown},
		{"Eyes", Unknown},
		{"Outfit", Unknown},
		{"Hair", "Bob"},
		{"Headwear", None},
		{"Hand", Unknown},
		{"Hand Gear", None},
		{"Gender", "Female"},
	}
	if diff := cmp.Diff(want, Export(plan)); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestExportAlwaysTenEntries(t *testing.T) {
	got := Export(compose.Plan{Gender: traits.Male})
	if len(got) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(got))
	}
	for _, a := range got {
		if (a.Category == "Headwear" || a.Category == "Hand Gear") && a.Value != None {
			t.Fatalf("optional category %s must default to None, got %q", a.Category, a.Value)
		}
	}
}

func TestAttributeJSONShape(t *testing.T) {
	b, err := json.Marshal(Attribute{Category: "Hand Gear", Value: "Abacus"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"trait_type":"Hand Gear","value":"Abacus"}` {
		t.Fatalf("unexpected json %s", b)
	}
}
