// Package tiffstack serializes a layers.LayerStack to and from a multi-page
// TIFF container: one page per layer, bottom-to-top, raw RGBA8 samples with
// a dedicated alpha extra channel, loss-lessly compressed, and per-layer
// metadata embedded as a pipe-delimited key=value string in each page's
// ImageDescription field.
//
// The encoder always writes little-endian TIFF with Deflate-compressed
// strips. The decoder additionally accepts big-endian files, uncompressed
// and LZW-compressed strips, and horizontal-predictor data, so stacks saved
// by common image editors load too.
//
// The reserved inpaint-mask layer is a transient work aid and is never
// written.
package tiffstack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/gopaint/layers"
)

// Package errors.
var (
	// ErrNoPages is returned when there is nothing to encode or decode.
	ErrNoPages = errors.New("tiffstack: no pages")

	// ErrBadHeader is returned for data that is not a TIFF container.
	ErrBadHeader = errors.New("tiffstack: bad header")

	// ErrUnsupported is returned for valid TIFF features this package does
	// not handle (exotic compression, tiled layout, deep samples).
	ErrUnsupported = errors.New("tiffstack: unsupported feature")
)

// TIFF tag and constant values used by this container.
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPredictor        = 317
	tagExtraSamples     = 338

	typeASCII = 2
	typeShort = 3
	typeLong  = 4

	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionOldDeflate = 32946

	photometricRGB = 2

	// extraAssociated marks the fourth sample as premultiplied alpha,
	// matching Pixmap storage.
	extraAssociated   = 1
	extraUnassociated = 2

	subfileTypePage = 2
)

// Encode writes the stack as a multi-page TIFF, bottom-to-top, skipping the
// reserved mask layer.
func Encode(w io.Writer, s *layers.LayerStack) error {
	if s == nil {
		return ErrNoPages
	}

	type page struct {
		pm   *layers.Pixmap
		desc string
	}
	var pages []page
	idx := 0
	for _, l := range s.Layers() {
		if l.IsInpaintMask() || l.IsDisposed() {
			continue
		}
		pm := l.Snapshot()
		if pm == nil {
			continue
		}
		pages = append(pages, page{pm: pm, desc: encodeMeta(l, idx)})
		idx++
	}
	if len(pages) == 0 {
		return ErrNoPages
	}

	b := newBuilder()
	prevNextPtr := 4 // header's first-IFD offset slot
	for _, pg := range pages {
		strip, err := deflate(pg.pm.Data())
		if err != nil {
			return fmt.Errorf("tiffstack: compress strip: %w", err)
		}
		ifdOff := b.writePage(pg.pm.Width(), pg.pm.Height(), strip, pg.desc)
		b.patchU32(prevNextPtr, uint32(ifdOff))
		prevNextPtr = b.nextPtrPos
	}

	if _, err := w.Write(b.buf); err != nil {
		return fmt.Errorf("tiffstack: write: %w", err)
	}
	return nil
}

// deflate compresses raw sample bytes with zlib (TIFF Deflate).
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// builder accumulates the output file and patches offsets as pages land.
type builder struct {
	buf []byte

	// nextPtrPos is the position of the most recent IFD's next-IFD slot.
	nextPtrPos int
}

func newBuilder() *builder {
	b := &builder{}
	b.buf = append(b.buf, 'I', 'I')
	b.appendU16(42)
	b.appendU32(0) // first IFD offset, patched later
	return b
}

func (b *builder) appendU16(v uint16) {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

func (b *builder) appendU32(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

func (b *builder) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[pos:pos+4], v)
}

// align pads to an even offset; TIFF values must be word-aligned.
func (b *builder) align() {
	if len(b.buf)%2 == 1 {
		b.buf = append(b.buf, 0)
	}
}

// ifdEntry is one directory entry. Inline values are stored left-justified
// in the 4-byte slot per the TIFF rules for little-endian files.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
	short bool // value is a single SHORT
}

// writePage appends one page (strip data, aux values, IFD) and returns the
// absolute offset of its IFD.
func (b *builder) writePage(width, height int, strip []byte, desc string) int {
	b.align()
	stripOff := len(b.buf)
	b.buf = append(b.buf, strip...)

	b.align()
	descOff := len(b.buf)
	b.buf = append(b.buf, desc...)
	b.buf = append(b.buf, 0)

	b.align()
	bpsOff := len(b.buf)
	for i := 0; i < 4; i++ {
		b.appendU16(8)
	}

	entries := []ifdEntry{
		{tag: tagNewSubfileType, typ: typeLong, count: 1, value: subfileTypePage},
		{tag: tagImageWidth, typ: typeLong, count: 1, value: uint32(width)},
		{tag: tagImageLength, typ: typeLong, count: 1, value: uint32(height)},
		{tag: tagBitsPerSample, typ: typeShort, count: 4, value: uint32(bpsOff)},
		{tag: tagCompression, typ: typeShort, count: 1, value: compressionDeflate, short: true},
		{tag: tagPhotometric, typ: typeShort, count: 1, value: photometricRGB, short: true},
		{tag: tagImageDescription, typ: typeASCII, count: uint32(len(desc) + 1), value: uint32(descOff)},
		{tag: tagStripOffsets, typ: typeLong, count: 1, value: uint32(stripOff)},
		{tag: tagSamplesPerPixel, typ: typeShort, count: 1, value: 4, short: true},
		{tag: tagRowsPerStrip, typ: typeLong, count: 1, value: uint32(height)},
		{tag: tagStripByteCounts, typ: typeLong, count: 1, value: uint32(len(strip))},
		{tag: tagExtraSamples, typ: typeShort, count: 1, value: extraAssociated, short: true},
	}

	b.align()
	ifdOff := len(b.buf)
	b.appendU16(uint16(len(entries)))
	for _, e := range entries {
		b.appendU16(e.tag)
		b.appendU16(e.typ)
		b.appendU32(e.count)
		if e.short {
			b.appendU16(uint16(e.value))
			b.appendU16(0)
		} else {
			b.appendU32(e.value)
		}
	}
	b.nextPtrPos = len(b.buf)
	b.appendU32(0) // next IFD, patched when the next page lands
	return ifdOff
}
