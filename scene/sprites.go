package scene

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/wippyai/mod-runtime/resource"
)

// ImageDecoder turns an asset path into pixels.
type ImageDecoder interface {
	DecodeImage(path string) (image.Image, error)
}

// DirDecoder decodes PNG, JPEG and GIF files from an asset directory.
// Paths are resolved through os.Root and cannot escape it.
type DirDecoder struct {
	root *os.Root
}

func NewDirDecoder(dir string) (*DirDecoder, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open asset dir: %w", err)
	}
	return &DirDecoder{root: root}, nil
}

func (d *DirDecoder) DecodeImage(path string) (image.Image, error) {
	f, err := d.root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (d *DirDecoder) Close() error { return d.root.Close() }

// SpriteImage is a decoded sprite.
type SpriteImage struct {
	Image image.Image
	Path  string
}

// Size returns the pixel dimensions.
func (s SpriteImage) Size() (w, h int) {
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Sprites owns decoded sprite images.
type Sprites struct {
	decoder ImageDecoder
	reg     *resource.Registry[SpriteImage]
}

// NewSprites returns an empty sprite store. A nil decoder makes every
// load fail.
func NewSprites(decoder ImageDecoder) *Sprites {
	return &Sprites{decoder: decoder, reg: resource.NewRegistry[SpriteImage]()}
}

// Load decodes path and returns a handle for it.
func (s *Sprites) Load(path string) (resource.Handle, error) {
	if s.decoder == nil {
		return resource.Invalid, fmt.Errorf("load sprite %s: no image decoder", path)
	}
	img, err := s.decoder.DecodeImage(path)
	if err != nil {
		return resource.Invalid, err
	}
	return s.reg.Insert(SpriteImage{Image: img, Path: path}), nil
}

// Unload drops the sprite behind h. Entities showing it lose their
// sprite component. It reports false for a stale handle.
func (s *Sprites) Unload(h resource.Handle) bool {
	_, ok := s.reg.Remove(h)
	return ok
}

func (s *Sprites) Get(h resource.Handle) (SpriteImage, bool) {
	return s.reg.Get(h)
}

func (s *Sprites) Contains(h resource.Handle) bool {
	return s.reg.Contains(h)
}

func (s *Sprites) Len() int { return s.reg.Len() }
