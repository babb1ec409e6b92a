// Command layersdemo demonstrates the layer compositing engine: it builds a
// small stack, paints an inpainting mask, and writes both a flattened PNG
// and a multi-page TIFF of the full stack.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gopaint/layers"
	"github.com/gopaint/layers/tiffstack"
)

func main() {
	var (
		width   = flag.Int("width", 512, "canvas width")
		height  = flag.Int("height", 512, "canvas height")
		flat    = flag.String("flat", "demo.png", "flattened output file")
		stacked = flag.String("stacked", "demo.tiff", "multi-page output file")
		mask    = flag.String("mask", "", "masked-image payload output file (optional)")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		layers.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	stack := layers.NewLayerStack(*width, *height)
	stack.Active().Fill(layers.RGB(0.9, 0.85, 0.7))

	shading := stack.AddLayer("Shading")
	shading.SetBlendMode(layers.BlendMultiply)
	shading.SetOpacity(0.6)
	shading.Draw(func(pm *layers.Pixmap) {
		for y := 0; y < pm.Height(); y++ {
			t := float64(y) / float64(pm.Height())
			for x := 0; x < pm.Width(); x++ {
				pm.SetPixel(x, y, layers.RGB(1-t*0.5, 1-t*0.4, 1-t*0.2))
			}
		}
	})

	accent := stack.AddLayer("Accent")
	accent.SetBlendMode(layers.BlendScreen)
	accent.Draw(func(pm *layers.Pixmap) {
		cx, cy := pm.Width()/2, pm.Height()/2
		r := pm.Width() / 4
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= r*r {
					pm.SetPixel(x, y, layers.RGBA{R: 0.2, G: 0.4, B: 0.9, A: 0.8})
				}
			}
		}
	})

	// Paint a mask stroke and produce the inpainting payload.
	ip := layers.NewInpainter(stack)
	ip.ApplyStroke([]layers.Point{
		{X: 0.3, Y: 0.3},
		{X: 0.5, Y: 0.45},
		{X: 0.7, Y: 0.3},
	}, 0.1)

	if *mask != "" {
		payload, err := ip.PrepareMaskedImage(6)
		if err != nil {
			log.Fatalf("prepare masked image: %v", err)
		}
		if err := os.WriteFile(*mask, payload.PNG, 0o644); err != nil {
			log.Fatalf("write %s: %v", *mask, err)
		}
		log.Printf("Masked payload saved to %s (%d bytes)", *mask, len(payload.PNG))
	}

	if err := layers.Flatten(stack).SavePNG(*flat); err != nil {
		log.Fatalf("save %s: %v", *flat, err)
	}
	log.Printf("Flattened image saved to %s (%dx%d)", *flat, *width, *height)

	f, err := os.Create(*stacked)
	if err != nil {
		log.Fatalf("create %s: %v", *stacked, err)
	}
	defer f.Close()
	if err := tiffstack.Encode(f, stack); err != nil {
		log.Fatalf("encode %s: %v", *stacked, err)
	}
	log.Printf("Layer stack saved to %s (%d layers)", *stacked, stack.Count())
}
