package layers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// ErrInvalidDimensions is returned when width or height is non-positive.
var ErrInvalidDimensions = errors.New("layers: invalid dimensions")

// ErrDataTooSmall is returned when a provided buffer is smaller than required.
var ErrDataTooSmall = errors.New("layers: data buffer too small")

// Pixmap represents a rectangular pixel buffer.
//
// Pixel data is stored as premultiplied RGBA, 4 bytes per pixel, row-major.
// Premultiplied storage makes compositing a pure per-byte operation; use
// ToNRGBA or RawRGBA when a collaborator needs straight alpha.
type Pixmap struct {
	width  int
	height int
	data   []uint8
}

// NewPixmap creates a new fully transparent pixmap with the given dimensions.
func NewPixmap(width, height int) *Pixmap {
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// NewPixmapFromData creates a pixmap that adopts the given premultiplied RGBA
// bytes. The slice must hold at least width*height*4 bytes.
func NewPixmapFromData(width, height int, data []uint8) (*Pixmap, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if len(data) < width*height*4 {
		return nil, ErrDataTooSmall
	}
	return &Pixmap{width: width, height: height, data: data[:width*height*4]}, nil
}

// FromImage creates a pixmap from an image of any color model.
func FromImage(img image.Image) *Pixmap {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// image.RGBA is alpha-premultiplied, matching Pixmap storage.
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	pm := NewPixmap(width, height)
	copy(pm.data, rgba.Pix)
	return pm
}

// Width returns the width of the pixmap.
func (p *Pixmap) Width() int {
	return p.width
}

// Height returns the height of the pixmap.
func (p *Pixmap) Height() int {
	return p.height
}

// Data returns the raw pixel data (premultiplied RGBA format).
func (p *Pixmap) Data() []uint8 {
	return p.data
}

// Clone returns a deep copy of the pixmap.
func (p *Pixmap) Clone() *Pixmap {
	out := NewPixmap(p.width, p.height)
	copy(out.data, p.data)
	return out
}

// SetPixel sets the color of a single pixel.
func (p *Pixmap) SetPixel(x, y int, c RGBA) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	r, g, b, a := c.premul()
	i := (y*p.width + x) * 4
	p.data[i+0] = r
	p.data[i+1] = g
	p.data[i+2] = b
	p.data[i+3] = a
}

// GetPixel returns the straight-alpha color of a single pixel.
func (p *Pixmap) GetPixel(x, y int) RGBA {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return Transparent
	}
	i := (y*p.width + x) * 4
	a := p.data[i+3]
	if a == 0 {
		return Transparent
	}
	return RGBA{
		R: float64(p.data[i+0]) / float64(a),
		G: float64(p.data[i+1]) / float64(a),
		B: float64(p.data[i+2]) / float64(a),
		A: float64(a) / 255,
	}
}

// AlphaAt returns the 8-bit alpha value of a single pixel, 0 outside bounds.
func (p *Pixmap) AlphaAt(x, y int) uint8 {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return 0
	}
	return p.data[(y*p.width+x)*4+3]
}

// Clear resets the entire pixmap to fully transparent.
func (p *Pixmap) Clear() {
	clear(p.data)
}

// Fill fills the entire pixmap with a solid color.
func (p *Pixmap) Fill(c RGBA) {
	r, g, b, a := c.premul()
	for i := 0; i < len(p.data); i += 4 {
		p.data[i+0] = r
		p.data[i+1] = g
		p.data[i+2] = b
		p.data[i+3] = a
	}
}

// IsBlank reports whether every pixel is fully transparent.
func (p *Pixmap) IsBlank() bool {
	for i := 3; i < len(p.data); i += 4 {
		if p.data[i] != 0 {
			return false
		}
	}
	return true
}

// Blit copies src into p with its top-left corner at (dx, dy), replacing
// destination pixels. Regions outside p are clipped away.
func (p *Pixmap) Blit(src *Pixmap, dx, dy int) {
	for sy := 0; sy < src.height; sy++ {
		ty := sy + dy
		if ty < 0 || ty >= p.height {
			continue
		}
		sx0, tx0 := 0, dx
		if tx0 < 0 {
			sx0 = -tx0
			tx0 = 0
		}
		n := src.width - sx0
		if tx0+n > p.width {
			n = p.width - tx0
		}
		if n <= 0 {
			continue
		}
		srcRow := src.data[(sy*src.width+sx0)*4 : (sy*src.width+sx0+n)*4]
		dstRow := p.data[(ty*p.width+tx0)*4 : (ty*p.width+tx0+n)*4]
		copy(dstRow, srcRow)
	}
}

// Scaled returns a copy of the pixmap resampled to the given dimensions
// using Catmull-Rom interpolation.
func (p *Pixmap) Scaled(width, height int) *Pixmap {
	if width == p.width && height == p.height {
		return p.Clone()
	}
	src := p.ToImage()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := NewPixmap(width, height)
	copy(out.data, dst.Pix)
	return out
}

// ToImage converts the pixmap to an image.RGBA (alpha-premultiplied, same as
// the internal storage).
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.data)
	return img
}

// ToNRGBA converts the pixmap to a straight-alpha image.NRGBA.
func (p *Pixmap) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	for i := 0; i < len(p.data); i += 4 {
		a := p.data[i+3]
		if a == 0 {
			continue
		}
		img.Pix[i+0] = uint8((uint32(p.data[i+0])*255 + uint32(a)/2) / uint32(a))
		img.Pix[i+1] = uint8((uint32(p.data[i+1])*255 + uint32(a)/2) / uint32(a))
		img.Pix[i+2] = uint8((uint32(p.data[i+2])*255 + uint32(a)/2) / uint32(a))
		img.Pix[i+3] = a
	}
	return img
}

// RawRGBA returns the pixel content as straight-alpha interleaved RGBA rows,
// width*height*4 bytes, row-major. This is the raw export payload consumed
// by background-removal and upscaling collaborators.
func (p *Pixmap) RawRGBA() []uint8 {
	return p.ToNRGBA().Pix
}

// EncodePNG encodes the pixmap as a PNG byte payload with straight alpha.
func (p *Pixmap) EncodePNG() ([]byte, error) {
	return encodePNG(p.ToNRGBA())
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("layers: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes an image byte payload of any registered format into a
// pixmap.
func DecodeImage(data []byte) (*Pixmap, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("layers: decode image: %w", err)
	}
	return FromImage(img), nil
}

// SavePNG saves the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return png.Encode(f, p.ToNRGBA())
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return color.RGBA{}
	}
	i := (y*p.width + x) * 4
	return color.RGBA{R: p.data[i+0], G: p.data[i+1], B: p.data[i+2], A: p.data[i+3]}
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.RGBAModel
}
