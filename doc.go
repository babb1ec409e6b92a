// Package layers provides a bitmap layer-compositing engine.
//
// # Overview
//
// layers maintains an ordered stack of raster layers, composites them into a
// single displayable or exportable image, and includes a masking subsystem
// used to prepare images for generative inpainting. It is the pixel core of
// an asset-management application: interactive tools, dialogs and network
// services live elsewhere and talk to this package through byte payloads and
// normalized coordinates.
//
// # Quick Start
//
//	import "github.com/gopaint/layers"
//
//	// Create a stack with one transparent background layer.
//	stack := layers.NewLayerStack(512, 512)
//	stack.Active().Fill(layers.Red)
//
//	// Add a second layer and blend it in.
//	top := stack.AddLayer("Shading")
//	top.SetBlendMode(layers.BlendMultiply)
//	top.SetOpacity(0.5)
//
//	// Flatten the visible layers and save.
//	flat := layers.Flatten(stack)
//	flat.SavePNG("output.png")
//
// # Inpainting
//
// The Inpainter owns the reserved mask layer (always topmost, never part of
// flattened output), paints strokes into it, feathers it, and produces the
// masked-image payload handed to an external generative service:
//
//	ip := layers.NewInpainter(stack)
//	ip.ApplyStroke([]layers.Point{{X: 0.5, Y: 0.5}}, 0.2)
//	payload, err := ip.PrepareMaskedImage(8)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Pixmap, Layer, LayerStack, Compositor, Inpainter
//   - Internal: blend (premultiplied compositing), filter (dilate, blur)
//   - tiffstack: multi-page TIFF serialization of a whole LayerStack
//
// All pixel buffers are premultiplied RGBA8. A single mutex per stack guards
// buffer access so renders and edits never observe torn pixels; change
// notifications are dispatched outside the lock.
package layers
