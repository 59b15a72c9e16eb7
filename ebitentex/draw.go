package ebitentex

import "github.com/hajimehoshi/ebiten/v2"

// A utility function to draw a frame into the given viewport, scaling
// as required with [ebiten.FilterLinear] to take as much space as possible
// while preserving the aspect ratio.
//
// The aspect ratio is the display ratio reported by the player's codec
// interface ([vidtex.CodecInterface].AspectRatio), which can differ from
// the frame's pixel ratio for anamorphic video. Pass 0 to use the frame's
// own ratio.
//
// If there's extra space in the viewport, the frame will be drawn centered,
// but black bars won't be explicitly drawn, so whatever was on the background
// of the viewport will remain visible. A nil frame draws nothing.
//
// Common usage:
//
//	frame := table.Image(player.TextureID())
//	ebitentex.Draw(screen, frame, player.Codec().AspectRatio())
func Draw(viewport, frame *ebiten.Image, aspectRatio float64) {
	if frame == nil {
		return
	}
	geom, filter := CalcProjection(viewport, frame, aspectRatio)
	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = filter
	viewport.DrawImage(frame, &opts)
}

// CalcProjection returns the GeoM and recommended ebiten.Filter to project
// the frame into the given viewport. If you don't need the specific parameters,
// see [Draw]() instead.
func CalcProjection(viewport, frame *ebiten.Image, aspectRatio float64) (ebiten.GeoM, ebiten.Filter) {
	frameBounds := frame.Bounds()
	viewBounds := viewport.Bounds()
	vwWidth, vwHeight := float64(viewBounds.Dx()), float64(viewBounds.Dy())
	frWidth, frHeight := float64(frameBounds.Dx()), float64(frameBounds.Dy())
	return projection(vwWidth, vwHeight, frWidth, frHeight, aspectRatio,
		float64(viewBounds.Min.X), float64(viewBounds.Min.Y))
}

func projection(vwWidth, vwHeight, frWidth, frHeight, aspectRatio, tx, ty float64) (ebiten.GeoM, ebiten.Filter) {
	var geom ebiten.GeoM
	if frWidth <= 0 || frHeight <= 0 {
		return geom, ebiten.FilterLinear
	}

	// horizontal stretch needed to display the frame at the requested ratio
	stretch := 1.0
	if aspectRatio > 0 {
		stretch = aspectRatio / (frWidth / frHeight)
	}
	dispWidth := frWidth * stretch

	wf, hf := vwWidth/dispWidth, vwHeight/frHeight
	sf := min(wf, hf)
	if sf == 1.0 && stretch == 1.0 {
		geom.Translate(tx+(vwWidth-frWidth)/2, ty+(vwHeight-frHeight)/2)
		return geom, ebiten.FilterNearest
	}

	geom.Scale(sf*stretch, sf)
	geom.Translate(tx+(vwWidth-dispWidth*sf)/2, ty+(vwHeight-frHeight*sf)/2)
	return geom, ebiten.FilterLinear
}
