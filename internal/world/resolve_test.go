package world

import "testing"

func TestResolveTiers(t *testing.T) {
	candidates := []string{"Home:Kitchen", "Home:Bedroom", "Library:Hall", "Cafe:Kitchen Counter"}

	tests := []struct {
		name     string
		query    string
		want     string
		wantTier Tier
	}{
		{"exact", "Library:Hall", "Library:Hall", TierExact},
		{"case-insensitive", "home:kitchen", "Home:Kitchen", TierCaseInsensitive},
		{"bare name", "Bedroom", "Home:Bedroom", TierBareName},
		{"bare name with other sector", "School:Hall", "Library:Hall", TierBareName},
		{"bare name beats substring", "kitchen", "Home:Kitchen", TierBareName},
		{"substring of full name", "library", "Library:Hall", TierSubstring},
		{"query contains candidate", "the Home:Bedroom upstairs", "Home:Bedroom", TierSubstring},
		{"substring of bare name", "Counter", "Cafe:Kitchen Counter", TierSubstring},
		{"fuzzy", "bdrm", "Home:Bedroom", TierFuzzy},
		{"no match", "zzz", "", TierNone},
		{"empty", "  ", "", TierNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tier := Resolve(tt.query, candidates)
			if got != tt.want || tier != tt.wantTier {
				t.Errorf("Resolve(%q) = %q (%s), want %q (%s)", tt.query, got, tier, tt.want, tt.wantTier)
			}
		})
	}
}

func TestResolvePrefersListOrderWithinTier(t *testing.T) {
	got, tier := Resolve("hall", []string{"Town:Hallway", "Library:Hall"})
	if got != "Library:Hall" || tier != TierBareName {
		t.Errorf("expected bare-name match on Library:Hall, got %q (%s)", got, tier)
	}

	got, _ = Resolve("Hall", []string{"Town:Big Hall", "School:Hall B"})
	if got != "Town:Big Hall" {
		t.Errorf("expected first substring match, got %q", got)
	}
}

func TestBareName(t *testing.T) {
	if BareName("A:B:C") != "C" || BareName("Plain") != "Plain" || BareName("Home: Kitchen") != "Kitchen" {
		t.Error("unexpected bare name")
	}
}
