package vidtex

// A Texture is a GPU image owned by a [Surface]. Textures must only be
// used from the render goroutine.
type Texture interface {
	// Replaces the texture contents with the given RGBA pixels.
	Upload(pix []byte) error
	Size() (width, height int)
	// Frees the GPU resources. The texture is unusable afterwards.
	Release()
}

// A PixelSource exposes the current texture of a surface. The texture can
// be nil before the first frame arrives, and can change when the video
// resolution changes.
type PixelSource interface {
	Texture() Texture
}

// A TextureTable is the host engine's texture registry. All methods are
// only called from the render goroutine.
type TextureTable interface {
	NewTexture(width, height int) (Texture, error)
	RegisterTexture(id Identifier, source PixelSource)
	UnregisterTexture(id Identifier)
}
