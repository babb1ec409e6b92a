package filter

import "sync"

// GaussianBlurRGBA blurs a premultiplied RGBA byte buffer in place using a
// two-pass separable convolution:
//  1. Horizontal pass: convolve each row with a 1D kernel
//  2. Vertical pass: convolve each column with the same kernel
//
// Edges are handled by clamping (edge extension). A sigma <= 0 is a no-op.
func GaussianBlurRGBA(data []uint8, width, height int, sigma float64) {
	if sigma <= 0 || width <= 0 || height <= 0 {
		return
	}

	kernel := CachedGaussianKernel(sigma)

	temp := getTempBuffer(width, height)
	defer putTempBuffer(temp)

	blurHorizontal(data, temp, width, height, kernel)
	blurVertical(temp, data, width, height, kernel)
}

// blurHorizontal applies 1D horizontal convolution, src bytes to temp floats.
func blurHorizontal(src []uint8, temp []float32, width, height int, kernel []float32) {
	kernelSize := len(kernel)
	halfKernel := kernelSize / 2

	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			var r, g, b, a float32

			for k := 0; k < kernelSize; k++ {
				kx := x + k - halfKernel
				if kx < 0 {
					kx = 0
				} else if kx >= width {
					kx = width - 1
				}

				srcIdx := (row + kx) * 4
				weight := kernel[k]

				r += float32(src[srcIdx+0]) * weight
				g += float32(src[srcIdx+1]) * weight
				b += float32(src[srcIdx+2]) * weight
				a += float32(src[srcIdx+3]) * weight
			}

			tempIdx := (row + x) * 4
			temp[tempIdx+0] = r
			temp[tempIdx+1] = g
			temp[tempIdx+2] = b
			temp[tempIdx+3] = a
		}
	}
}

// blurVertical applies 1D vertical convolution, temp floats to dst bytes.
func blurVertical(temp []float32, dst []uint8, width, height int, kernel []float32) {
	kernelSize := len(kernel)
	halfKernel := kernelSize / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b, a float32

			for k := 0; k < kernelSize; k++ {
				ky := y + k - halfKernel
				if ky < 0 {
					ky = 0
				} else if ky >= height {
					ky = height - 1
				}

				tempIdx := (ky*width + x) * 4
				weight := kernel[k]

				r += temp[tempIdx+0] * weight
				g += temp[tempIdx+1] * weight
				b += temp[tempIdx+2] * weight
				a += temp[tempIdx+3] * weight
			}

			dstIdx := (y*width + x) * 4
			dst[dstIdx+0] = clampUint8(r)
			dst[dstIdx+1] = clampUint8(g)
			dst[dstIdx+2] = clampUint8(b)
			dst[dstIdx+3] = clampUint8(a)
		}
	}
}

// floatBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type floatBuffer struct {
	data []float32
}

// Temporary buffer pool for blur operations.
var tempBufferPool = sync.Pool{
	New: func() interface{} {
		return &floatBuffer{data: make([]float32, 1024*1024*4)}
	},
}

// getTempBuffer retrieves a temporary buffer from the pool.
// The buffer is guaranteed to have at least width*height*4 elements.
func getTempBuffer(width, height int) []float32 {
	size := width * height * 4
	wrapper := tempBufferPool.Get().(*floatBuffer)

	if len(wrapper.data) < size {
		tempBufferPool.Put(wrapper)
		return make([]float32, size)
	}

	clear(wrapper.data[:size])
	return wrapper.data[:size]
}

// putTempBuffer returns a temporary buffer to the pool.
func putTempBuffer(buf []float32) {
	// Only pool reasonably-sized buffers.
	if cap(buf) <= 16*1024*1024 {
		tempBufferPool.Put(&floatBuffer{data: buf[:cap(buf)]})
	}
}

// clampUint8 clamps a float32 to [0, 255] and converts to uint8.
func clampUint8(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5) // Round to nearest
}
