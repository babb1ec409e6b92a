package layers

import "testing"

// TestBlendModeNames tests the String/Parse round trip for every mode.
func TestBlendModeNames(t *testing.T) {
	modes := []BlendMode{
		BlendNormal, BlendMultiply, BlendScreen, BlendOverlay,
		BlendDarken, BlendLighten, BlendColorDodge, BlendColorBurn,
		BlendSoftLight, BlendHardLight, BlendDifference, BlendExclusion,
	}
	for _, m := range modes {
		name := m.String()
		if name == "" || name == "Unknown" {
			t.Errorf("Mode %d has no canonical name", m)
			continue
		}
		got, ok := ParseBlendMode(name)
		if !ok || got != m {
			t.Errorf("ParseBlendMode(%q) = %v, %v; want %v, true", name, got, ok, m)
		}
	}
}

// TestParseBlendModeUnknown tests the defensive fallback.
func TestParseBlendModeUnknown(t *testing.T) {
	tests := []string{"", "multiply", "NORMAL", "Linear Burn"}
	for _, name := range tests {
		m, ok := ParseBlendMode(name)
		if ok {
			t.Errorf("ParseBlendMode(%q) accepted an unknown name", name)
		}
		if m != BlendNormal {
			t.Errorf("ParseBlendMode(%q) = %v, want BlendNormal fallback", name, m)
		}
	}
}

// TestBlendModeStringOutOfRange tests the out-of-range guard.
func TestBlendModeStringOutOfRange(t *testing.T) {
	if got := BlendMode(200).String(); got != "Unknown" {
		t.Errorf("String() = %q, want Unknown", got)
	}
}
