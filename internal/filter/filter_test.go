package filter

import (
	"math"
	"testing"
)

// TestGaussianKernel tests kernel size, normalization and symmetry.
func TestGaussianKernel(t *testing.T) {
	tests := []struct {
		name     string
		sigma    float64
		wantSize int
	}{
		{"identity", 0, 1},
		{"negative", -2, 1},
		{"sigma 1", 1.0, 7},
		{"sigma 2.5", 2.5, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := GaussianKernel(tt.sigma)
			if len(k) != tt.wantSize {
				t.Errorf("Size = %d, want %d", len(k), tt.wantSize)
			}

			var sum float64
			for _, v := range k {
				sum += float64(v)
			}
			if math.Abs(sum-1.0) > 1e-4 {
				t.Errorf("Sum = %v, want 1.0", sum)
			}

			for i := 0; i < len(k)/2; i++ {
				if k[i] != k[len(k)-1-i] {
					t.Errorf("Kernel not symmetric at %d: %v != %v", i, k[i], k[len(k)-1-i])
				}
			}

			// The center carries the peak weight.
			mid := len(k) / 2
			for i, v := range k {
				if v > k[mid] {
					t.Errorf("Weight %d (%v) above the center (%v)", i, v, k[mid])
				}
			}
		})
	}
}

// TestCachedGaussianKernel tests that repeated sigmas hit the cache.
func TestCachedGaussianKernel(t *testing.T) {
	a := CachedGaussianKernel(1.5)
	b := CachedGaussianKernel(1.5)
	if &a[0] != &b[0] {
		t.Error("Repeated sigma should return the cached kernel")
	}
	c := CachedGaussianKernel(2.5)
	if len(c) == len(a) && &c[0] == &a[0] {
		t.Error("Different sigma must not share a kernel")
	}
}

// solidBuffer fills a w*h RGBA buffer with one premultiplied pixel value.
func solidBuffer(w, h int, r, g, b, a uint8) []uint8 {
	data := make([]uint8, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i+0] = r
		data[i+1] = g
		data[i+2] = b
		data[i+3] = a
	}
	return data
}

// TestGaussianBlurSolid tests that a uniform image is a blur fixed point.
func TestGaussianBlurSolid(t *testing.T) {
	data := solidBuffer(16, 16, 100, 150, 200, 255)
	GaussianBlurRGBA(data, 16, 16, 2.0)

	for i := 0; i < len(data); i += 4 {
		if absDiff(data[i], 100) > 1 || absDiff(data[i+1], 150) > 1 ||
			absDiff(data[i+2], 200) > 1 || absDiff(data[i+3], 255) > 1 {
			t.Fatalf("Pixel %d drifted: %v", i/4, data[i:i+4])
		}
	}
}

// TestGaussianBlurSpreads tests energy flow from a single bright pixel.
func TestGaussianBlurSpreads(t *testing.T) {
	const w, h = 15, 15
	data := make([]uint8, w*h*4)
	ci := ((h/2)*w + w/2) * 4
	data[ci+3] = 255

	GaussianBlurRGBA(data, w, h, 2.0)

	center := data[ci+3]
	if center == 0 || center == 255 {
		t.Errorf("Center alpha = %d, want spread but nonzero", center)
	}
	neighbor := data[ci+4+3]
	if neighbor == 0 {
		t.Error("Neighbor should receive blurred energy")
	}
	if neighbor > center {
		t.Error("Energy should peak at the center")
	}
	corner := data[3]
	if corner != 0 {
		t.Errorf("Corner alpha = %d, want 0 beyond three sigma", corner)
	}
}

// TestGaussianBlurNoop tests the sigma guard.
func TestGaussianBlurNoop(t *testing.T) {
	data := solidBuffer(4, 4, 10, 20, 30, 40)
	want := make([]uint8, len(data))
	copy(want, data)

	GaussianBlurRGBA(data, 4, 4, 0)
	GaussianBlurRGBA(data, 4, 4, -1)

	for i := range data {
		if data[i] != want[i] {
			t.Fatal("Non-positive sigma must not touch the buffer")
		}
	}
}

// TestDilateGrows tests square growth of an isolated opaque pixel.
func TestDilateGrows(t *testing.T) {
	const w, h = 9, 9
	data := make([]uint8, w*h*4)
	set := func(x, y int, v uint8) { data[(y*w+x)*4+3] = v }
	at := func(x, y int) uint8 { return data[(y*w+x)*4+3] }

	set(4, 4, 255)
	DilateRGBA(data, w, h, 2)

	// Everything within the 5x5 square becomes opaque.
	for y := 2; y <= 6; y++ {
		for x := 2; x <= 6; x++ {
			if at(x, y) != 255 {
				t.Errorf("Alpha(%d,%d) = %d, want 255", x, y, at(x, y))
			}
		}
	}
	// Outside the square stays clear.
	if at(1, 4) != 0 || at(4, 1) != 0 || at(7, 7) != 0 {
		t.Error("Dilation leaked past its radius")
	}
}

// TestDilateEdges tests clamping at buffer borders.
func TestDilateEdges(t *testing.T) {
	const w, h = 5, 5
	data := make([]uint8, w*h*4)
	data[3] = 255 // corner (0, 0)

	DilateRGBA(data, w, h, 1)

	at := func(x, y int) uint8 { return data[(y*w+x)*4+3] }
	if at(0, 0) != 255 || at(1, 0) != 255 || at(1, 1) != 255 {
		t.Error("Corner dilation incomplete")
	}
	if at(2, 2) != 0 {
		t.Error("Dilation overshot at the corner")
	}
}

// TestDilateNoop tests the radius guard.
func TestDilateNoop(t *testing.T) {
	data := solidBuffer(4, 4, 1, 2, 3, 4)
	want := make([]uint8, len(data))
	copy(want, data)

	DilateRGBA(data, 4, 4, 0)
	DilateRGBA(data, 4, 4, -3)

	for i := range data {
		if data[i] != want[i] {
			t.Fatal("Non-positive radius must not touch the buffer")
		}
	}
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
