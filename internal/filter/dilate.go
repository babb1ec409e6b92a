package filter

// DilateRGBA grows the opaque region of a premultiplied RGBA byte buffer by
// radius pixels, in place. The dilation is a separable running-max filter
// (one horizontal pass, one vertical pass), which realizes a square
// structuring element of side 2*radius+1.
//
// A radius <= 0 is a no-op.
func DilateRGBA(data []uint8, width, height int, radius int) {
	if radius <= 0 || width <= 0 || height <= 0 {
		return
	}

	temp := make([]uint8, len(data))

	dilateHorizontal(data, temp, width, height, radius)
	dilateVertical(temp, data, width, height, radius)
}

// dilateHorizontal writes to dst the per-channel max over a horizontal
// window of 2*radius+1 pixels centered on each source pixel.
func dilateHorizontal(src, dst []uint8, width, height, radius int) {
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			x0 := x - radius
			if x0 < 0 {
				x0 = 0
			}
			x1 := x + radius
			if x1 >= width {
				x1 = width - 1
			}

			var r, g, b, a uint8
			for k := x0; k <= x1; k++ {
				i := (row + k) * 4
				if src[i+0] > r {
					r = src[i+0]
				}
				if src[i+1] > g {
					g = src[i+1]
				}
				if src[i+2] > b {
					b = src[i+2]
				}
				if src[i+3] > a {
					a = src[i+3]
				}
			}

			o := (row + x) * 4
			dst[o+0] = r
			dst[o+1] = g
			dst[o+2] = b
			dst[o+3] = a
		}
	}
}

// dilateVertical is the vertical counterpart of dilateHorizontal.
func dilateVertical(src, dst []uint8, width, height, radius int) {
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			y0 := y - radius
			if y0 < 0 {
				y0 = 0
			}
			y1 := y + radius
			if y1 >= height {
				y1 = height - 1
			}

			var r, g, b, a uint8
			for k := y0; k <= y1; k++ {
				i := (k*width + x) * 4
				if src[i+0] > r {
					r = src[i+0]
				}
				if src[i+1] > g {
					g = src[i+1]
				}
				if src[i+2] > b {
					b = src[i+2]
				}
				if src[i+3] > a {
					a = src[i+3]
				}
			}

			o := (y*width + x) * 4
			dst[o+0] = r
			dst[o+1] = g
			dst[o+2] = b
			dst[o+3] = a
		}
	}
}
