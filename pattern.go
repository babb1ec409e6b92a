package layers

// Pattern represents a repeating fill pattern.
type Pattern interface {
	// ColorAt returns the color at the given pixel.
	ColorAt(x, y int) RGBA
}

// SolidPattern represents a solid color pattern.
type SolidPattern struct {
	Color RGBA
}

// NewSolidPattern creates a solid color pattern.
func NewSolidPattern(color RGBA) *SolidPattern {
	return &SolidPattern{Color: color}
}

// ColorAt implements Pattern.
func (p *SolidPattern) ColorAt(x, y int) RGBA {
	return p.Color
}

// CheckerPattern is a two-tone checkerboard. It backs transparency previews
// in layer thumbnails and the painted-mask visualization.
type CheckerPattern struct {
	Light RGBA
	Dark  RGBA
	Size  int // edge length of one square, in pixels
}

// NewCheckerPattern creates a checkerboard with the given square size.
func NewCheckerPattern(light, dark RGBA, size int) *CheckerPattern {
	if size < 1 {
		size = 1
	}
	return &CheckerPattern{Light: light, Dark: dark, Size: size}
}

// ColorAt implements Pattern.
func (p *CheckerPattern) ColorAt(x, y int) RGBA {
	if ((x/p.Size)+(y/p.Size))%2 == 0 {
		return p.Light
	}
	return p.Dark
}

// fillPattern stamps the pattern over the whole pixmap, replacing content.
func fillPattern(pm *Pixmap, pat Pattern) {
	for y := 0; y < pm.height; y++ {
		for x := 0; x < pm.width; x++ {
			pm.SetPixel(x, y, pat.ColorAt(x, y))
		}
	}
}
