package tiffstack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/tiff/lzw"

	"github.com/gopaint/layers"
)

// Decode reads a multi-page TIFF and reconstructs a LayerStack. Pages are
// appended in read order, so a file written by Encode round-trips with the
// original bottom-to-top layer order. Per-page metadata is parsed
// defensively: a missing or malformed field falls back to name "Layer N",
// opacity 1.0, blend mode Normal, visible. The first page starts active.
//
// A malformed page fails the whole decode; no partial stack is returned.
func Decode(r io.Reader) (*layers.LayerStack, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tiffstack: read: %w", err)
	}
	if len(data) < 8 {
		return nil, ErrBadHeader
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, ErrBadHeader
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, ErrBadHeader
	}

	d := &decoder{data: data, order: order}

	var built []*layers.Layer
	width, height := 0, 0

	ifdOff := int64(order.Uint32(data[4:8]))
	pageNum := 0
	for ifdOff != 0 {
		if pageNum >= maxPages {
			return nil, fmt.Errorf("tiffstack: %w: IFD chain too long", ErrUnsupported)
		}
		page, nextOff, err := d.readPage(ifdOff, pageNum)
		if err != nil {
			return nil, err
		}
		if width == 0 {
			width, height = page.width, page.height
		} else if page.width != width || page.height != height {
			return nil, fmt.Errorf("tiffstack: page %d is %dx%d, want %dx%d: %w",
				pageNum, page.width, page.height, width, height, layers.ErrLayerSizeMismatch)
		}
		built = append(built, page.layer)
		ifdOff = nextOff
		pageNum++
	}

	if len(built) == 0 {
		return nil, ErrNoPages
	}
	return layers.AssembleStack(width, height, built)
}

// maxPages caps the IFD walk so a corrupt next-pointer loop cannot spin.
const maxPages = 4096

type decoder struct {
	data  []byte
	order binary.ByteOrder
}

type decodedPage struct {
	width  int
	height int
	layer  *layers.Layer
}

// ifdField is one parsed directory entry.
type ifdField struct {
	typ   uint16
	count uint32
	raw   []byte // the 4-byte value slot
}

// readPage parses the IFD at off and returns the reconstructed layer plus
// the offset of the next IFD (0 for the last page).
func (d *decoder) readPage(off int64, pageNum int) (*decodedPage, int64, error) {
	if off < 0 || off+2 > int64(len(d.data)) {
		return nil, 0, fmt.Errorf("tiffstack: page %d: IFD offset out of range", pageNum)
	}
	n := int(d.order.Uint16(d.data[off : off+2]))
	end := off + 2 + int64(n)*12 + 4
	if end > int64(len(d.data)) {
		return nil, 0, fmt.Errorf("tiffstack: page %d: truncated IFD", pageNum)
	}

	fields := make(map[uint16]ifdField, n)
	for i := 0; i < n; i++ {
		e := off + 2 + int64(i)*12
		fields[d.order.Uint16(d.data[e:e+2])] = ifdField{
			typ:   d.order.Uint16(d.data[e+2 : e+4]),
			count: d.order.Uint32(d.data[e+4 : e+8]),
			raw:   d.data[e+8 : e+12],
		}
	}
	nextOff := int64(d.order.Uint32(d.data[end-4 : end]))

	width := int(d.scalar(fields, tagImageWidth, 0))
	height := int(d.scalar(fields, tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, 0, fmt.Errorf("tiffstack: page %d: missing dimensions", pageNum)
	}

	samples := int(d.scalar(fields, tagSamplesPerPixel, 4))
	if samples != 3 && samples != 4 {
		return nil, 0, fmt.Errorf("tiffstack: page %d: %d samples per pixel: %w", pageNum, samples, ErrUnsupported)
	}
	for _, bits := range d.array(fields, tagBitsPerSample) {
		if bits != 8 {
			return nil, 0, fmt.Errorf("tiffstack: page %d: %d bits per sample: %w", pageNum, bits, ErrUnsupported)
		}
	}

	compression := int(d.scalar(fields, tagCompression, compressionNone))
	predictor := int(d.scalar(fields, tagPredictor, 1))

	offsets := d.array(fields, tagStripOffsets)
	counts := d.array(fields, tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, 0, fmt.Errorf("tiffstack: page %d: inconsistent strip layout", pageNum)
	}

	var raw []byte
	for i := range offsets {
		so, sc := int64(offsets[i]), int64(counts[i])
		if so < 0 || sc < 0 || so+sc > int64(len(d.data)) {
			return nil, 0, fmt.Errorf("tiffstack: page %d: strip %d out of range", pageNum, i)
		}
		strip, err := decompress(d.data[so:so+sc], compression)
		if err != nil {
			return nil, 0, fmt.Errorf("tiffstack: page %d: strip %d: %w", pageNum, i, err)
		}
		raw = append(raw, strip...)
	}

	if predictor == 2 {
		undoPredictor(raw, width, samples)
	}

	need := width * height * samples
	if len(raw) < need {
		return nil, 0, fmt.Errorf("tiffstack: page %d: short pixel data: have %d, want %d", pageNum, len(raw), need)
	}
	raw = raw[:need]

	rgba := raw
	if samples == 3 {
		rgba = expandRGB(raw, width*height)
	} else if int(d.scalar(fields, tagExtraSamples, extraAssociated)) == extraUnassociated {
		premultiply(rgba)
	}

	pm, err := layers.NewPixmapFromData(width, height, rgba)
	if err != nil {
		return nil, 0, fmt.Errorf("tiffstack: page %d: %w", pageNum, err)
	}

	meta := parseMeta(d.describe(fields), pageNum)
	if meta.index != pageNum {
		layers.Logger().Warn("page metadata index disagrees with read order",
			slog.Int("page", pageNum), slog.Int("index", meta.index))
	}

	l := layers.NewLayerFromPixmap(meta.name, pm)
	l.SetOpacity(meta.opacity)
	l.SetBlendMode(meta.mode)
	l.SetVisible(meta.visible)

	return &decodedPage{width: width, height: height, layer: l}, nextOff, nil
}

// describe extracts the ImageDescription string, or "" when absent.
func (d *decoder) describe(fields map[uint16]ifdField) string {
	f, ok := fields[tagImageDescription]
	if !ok || f.typ != typeASCII || f.count == 0 {
		return ""
	}
	var raw []byte
	if f.count <= 4 {
		raw = f.raw[:f.count]
	} else {
		off := int64(d.order.Uint32(f.raw))
		if off < 0 || off+int64(f.count) > int64(len(d.data)) {
			return ""
		}
		raw = d.data[off : off+int64(f.count)]
	}
	return string(bytes.TrimRight(raw, "\x00"))
}

// scalar returns the first value of a SHORT/LONG field, or fallback.
func (d *decoder) scalar(fields map[uint16]ifdField, tag uint16, fallback uint32) uint32 {
	vs := d.array(fields, tag)
	if len(vs) == 0 {
		return fallback
	}
	return vs[0]
}

// array returns all values of a SHORT/LONG field.
func (d *decoder) array(fields map[uint16]ifdField, tag uint16) []uint32 {
	f, ok := fields[tag]
	if !ok || f.count == 0 || f.count > uint32(len(d.data)) {
		return nil
	}
	var size uint32
	switch f.typ {
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil
	}

	src := f.raw
	if size*f.count > 4 {
		off := int64(d.order.Uint32(f.raw))
		if off < 0 || off+int64(size*f.count) > int64(len(d.data)) {
			return nil
		}
		src = d.data[off : off+int64(size*f.count)]
	}

	out := make([]uint32, f.count)
	for i := range out {
		if size == 2 {
			out[i] = uint32(d.order.Uint16(src[i*2 : i*2+2]))
		} else {
			out[i] = d.order.Uint32(src[i*4 : i*4+4])
		}
	}
	return out
}

// decompress reverses the strip compression.
func decompress(data []byte, compression int) ([]byte, error) {
	switch compression {
	case compressionNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case compressionLZW:
		// TIFF uses the early-change LZW variant, which the x/image fork
		// handles and the stdlib reader does not.
		rc := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
		defer rc.Close()
		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("lzw: %w", err)
		}
		return out, nil
	case compressionDeflate, compressionOldDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compression %d: %w", compression, ErrUnsupported)
	}
}

// undoPredictor reverses TIFF horizontal differencing in place.
func undoPredictor(data []byte, width, samples int) {
	rowLen := width * samples
	for row := 0; row+rowLen <= len(data); row += rowLen {
		for i := samples; i < rowLen; i++ {
			data[row+i] += data[row+i-samples]
		}
	}
}

// expandRGB converts packed RGB samples to opaque RGBA.
func expandRGB(rgb []byte, pixels int) []byte {
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		out[i*4+0] = rgb[i*3+0]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 255
	}
	return out
}

// premultiply converts unassociated-alpha RGBA samples to the premultiplied
// form Pixmap stores.
func premultiply(rgba []byte) {
	for i := 0; i+3 < len(rgba); i += 4 {
		a := uint32(rgba[i+3])
		rgba[i+0] = uint8(uint32(rgba[i+0]) * a / 255)
		rgba[i+1] = uint8(uint32(rgba[i+1]) * a / 255)
		rgba[i+2] = uint8(uint32(rgba[i+2]) * a / 255)
	}
}
