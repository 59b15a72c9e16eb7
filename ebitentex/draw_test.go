package ebitentex

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
)

func TestProjection_SameSizeIsCentered(t *testing.T) {
	geom, filter := projection(100, 100, 100, 100, 0, 0, 0)
	x, y := geom.Apply(0, 0)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	assert.Equal(t, ebiten.FilterNearest, filter)
}

func TestProjection_LetterboxesWideFrame(t *testing.T) {
	// 200x100 frame into a 100x100 viewport: scaled by 0.5, centered vertically
	geom, filter := projection(100, 100, 200, 100, 0, 0, 0)
	x0, y0 := geom.Apply(0, 0)
	x1, y1 := geom.Apply(200, 100)
	assert.InDelta(t, 0, x0, 1e-9)
	assert.InDelta(t, 25, y0, 1e-9)
	assert.InDelta(t, 100, x1, 1e-9)
	assert.InDelta(t, 75, y1, 1e-9)
	assert.Equal(t, ebiten.FilterLinear, filter)
}

func TestProjection_AppliesDisplayAspectRatio(t *testing.T) {
	// square pixels stored, but displayed at 2:1
	geom, _ := projection(200, 200, 100, 100, 2, 10, 20)
	x0, y0 := geom.Apply(0, 0)
	x1, y1 := geom.Apply(100, 100)
	assert.InDelta(t, 200, x1-x0, 1e-9)
	assert.InDelta(t, 100, y1-y0, 1e-9)
	assert.InDelta(t, 10, x0, 1e-9)
	assert.InDelta(t, 20+50, y0, 1e-9)
}
