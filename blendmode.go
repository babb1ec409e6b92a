package layers

import "github.com/gopaint/layers/internal/blend"

// BlendMode selects the per-pixel function used to combine a layer's color
// with what is already composited beneath it.
type BlendMode uint8

const (
	// BlendNormal performs standard alpha blending (source over destination).
	BlendNormal BlendMode = iota

	// BlendMultiply multiplies source and destination colors.
	// Result is always darker or equal.
	BlendMultiply

	// BlendScreen performs inverse multiply for lighter results.
	BlendScreen

	// BlendOverlay combines multiply and screen based on destination brightness.
	BlendOverlay

	// BlendDarken selects the darker of source and destination.
	BlendDarken

	// BlendLighten selects the lighter of source and destination.
	BlendLighten

	// BlendColorDodge brightens the destination to reflect the source.
	BlendColorDodge

	// BlendColorBurn darkens the destination to reflect the source.
	BlendColorBurn

	// BlendSoftLight is a softer version of HardLight.
	BlendSoftLight

	// BlendHardLight multiplies or screens depending on the source value.
	BlendHardLight

	// BlendDifference produces the absolute difference of source and destination.
	BlendDifference

	// BlendExclusion is similar to Difference but with lower contrast.
	BlendExclusion
)

var blendModeNames = [...]string{
	"Normal",
	"Multiply",
	"Screen",
	"Overlay",
	"Darken",
	"Lighten",
	"ColorDodge",
	"ColorBurn",
	"SoftLight",
	"HardLight",
	"Difference",
	"Exclusion",
}

// String returns the blend mode's canonical name, the same spelling the
// multi-page serializer embeds in page metadata.
func (m BlendMode) String() string {
	if int(m) < len(blendModeNames) {
		return blendModeNames[m]
	}
	return "Unknown"
}

// ParseBlendMode returns the blend mode with the given canonical name.
// The second return value reports whether the name was recognized; unknown
// names yield BlendNormal.
func ParseBlendMode(name string) (BlendMode, bool) {
	for i, n := range blendModeNames {
		if n == name {
			return BlendMode(i), true
		}
	}
	return BlendNormal, false
}

// fn returns the premultiplied byte blend function for the mode.
func (m BlendMode) fn() blend.Func {
	return blend.ModeFunc(blend.Mode(m))
}
