// Package ebitentex hosts vidtex textures on Ebitengine images.
//
// A [Table] is the texture registry handed to a [vidtex.Manager]. Game
// code looks registered textures up by identifier with [Table.Image]()
// and draws them with [Draw]().
package ebitentex

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	vidtex "github.com/erparts/go-vidtex"
)

var (
	_ vidtex.TextureTable = (*Table)(nil)
	_ vidtex.Texture      = (*Texture)(nil)
)

// A Texture wraps an [ebiten.Image] as a [vidtex.Texture].
type Texture struct {
	image         *ebiten.Image
	width, height int
}

// Image returns the underlying image, or nil once released.
func (t *Texture) Image() *ebiten.Image { return t.image }

func (t *Texture) Size() (int, int) { return t.width, t.height }

func (t *Texture) Upload(pix []byte) error {
	if t.image == nil {
		return fmt.Errorf("upload to released texture")
	}
	if want := t.width * t.height * 4; len(pix) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", vidtex.ErrTextureSize, len(pix), want)
	}
	t.image.WritePixels(pix)
	return nil
}

func (t *Texture) Release() {
	if t.image != nil {
		t.image.Deallocate()
		t.image = nil
	}
}

// A Table maps texture identifiers to the pixel sources registered under
// them.
type Table struct {
	mutex   sync.RWMutex
	sources map[vidtex.Identifier]vidtex.PixelSource
}

func NewTable() *Table {
	return &Table{sources: make(map[vidtex.Identifier]vidtex.PixelSource)}
}

func (t *Table) NewTexture(width, height int) (vidtex.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", vidtex.ErrTextureSize, width, height)
	}
	return &Texture{image: ebiten.NewImage(width, height), width: width, height: height}, nil
}

func (t *Table) RegisterTexture(id vidtex.Identifier, source vidtex.PixelSource) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sources[id] = source
}

func (t *Table) UnregisterTexture(id vidtex.Identifier) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.sources, id)
}

// Registered reports whether a source is registered under the identifier.
func (t *Table) Registered(id vidtex.Identifier) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	_, ok := t.sources[id]
	return ok
}

// Image returns the current image registered under the identifier. It
// returns nil while nothing is registered or no frame was uploaded yet.
// The image can change when the video resolution changes, so look it up
// on every draw instead of storing it.
func (t *Table) Image(id vidtex.Identifier) *ebiten.Image {
	t.mutex.RLock()
	source, ok := t.sources[id]
	t.mutex.RUnlock()
	if !ok {
		return nil
	}
	texture, ok := source.Texture().(*Texture)
	if !ok || texture == nil {
		return nil
	}
	return texture.image
}
