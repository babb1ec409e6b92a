package tiffstack

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gopaint/layers"
)

// pageMeta is the per-layer metadata carried in a page's ImageDescription
// field as a pipe-delimited key=value string, e.g.
//
//	name=Shading|opacity=0.50|blend=Multiply|visible=1|index=2
type pageMeta struct {
	name    string
	opacity float64
	mode    layers.BlendMode
	visible bool
	index   int
}

// encodeMeta renders a layer's metadata string. Pipe characters cannot
// survive the delimiter, so they are substituted in the name.
func encodeMeta(l *layers.Layer, index int) string {
	name := strings.ReplaceAll(l.Name(), "|", "/")
	visible := 0
	if l.IsVisible() {
		visible = 1
	}
	return fmt.Sprintf("name=%s|opacity=%.2f|blend=%s|visible=%d|index=%d",
		name, l.Opacity(), l.BlendMode(), visible, index)
}

// parseMeta parses a metadata string defensively. Missing or malformed
// fields fall back to name "Layer N" (N = 1-based page number), opacity
// 1.0, blend Normal, visible.
func parseMeta(desc string, pageNum int) pageMeta {
	meta := pageMeta{
		name:    fmt.Sprintf("Layer %d", pageNum+1),
		opacity: 1.0,
		mode:    layers.BlendNormal,
		visible: true,
		index:   pageNum,
	}

	for _, part := range strings.Split(desc, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			if value != "" {
				meta.name = value
			}
		case "opacity":
			if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 && v <= 1 {
				meta.opacity = v
			}
		case "blend":
			if m, ok := layers.ParseBlendMode(value); ok {
				meta.mode = m
			}
		case "visible":
			switch value {
			case "0":
				meta.visible = false
			case "1":
				meta.visible = true
			}
		case "index":
			if v, err := strconv.Atoi(value); err == nil && v >= 0 {
				meta.index = v
			}
		}
	}
	return meta
}
