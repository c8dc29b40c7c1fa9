// Package texture provides the fixed-width RGBA grid codec the quantizing
// writer (C10) packs every per-field texture into. Spec §1 scopes "WebP
// codec bindings" out as an external collaborator described only at its
// interface; no package in the retrieved corpus links a lossless WebP
// *encoder* (golang.org/x/image/webp, the only WebP reference anywhere in
// the pack, registers a decoder only). Encoder/Decoder is that exact
// interface boundary: the default Encoder is a real, grounded standard
// library codec (image/png) standing in for "inject a WebP encoder here",
// and is named explicitly in DESIGN.md rather than invented.
package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	sferrors "github.com/sogforge/sogforge/internal/errors"
)

// Grid is a width*height RGBA pixel buffer addressed row-major, the
// in-memory shape every C10 texture is built into before encoding.
type Grid struct {
	Width, Height int
	Pixels        []color.RGBA // len == Width*Height
}

// NewGrid allocates a grid with every pixel defaulting to alpha 255 (spec
// §4.10: "excess pixels are zero-filled with alpha 255").
func NewGrid(width, height int) *Grid {
	px := make([]color.RGBA, width*height)
	for i := range px {
		px[i].A = 255
	}
	return &Grid{Width: width, Height: height, Pixels: px}
}

// Set writes a pixel at (x,y), row-major.
func (g *Grid) Set(x, y int, c color.RGBA) {
	g.Pixels[y*g.Width+x] = c
}

// image converts the grid to a stdlib image.NRGBA for encoding. Grid pixels
// carry straight (non-premultiplied) alpha, so they are stored unchanged.
func (g *Grid) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := g.Pixels[y*g.Width+x]
			img.SetNRGBA(x, y, color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A})
		}
	}
	return img
}

// Encoder turns a Grid into its on-disk texture byte representation. The
// quantizing writer (C10) is written against this interface, not against
// image/png directly, so a real WebP binding can be substituted without
// touching C10's packing logic.
type Encoder interface {
	// Encode writes grid to w and returns the filename extension (including
	// the dot) to use for the produced bytes.
	Encode(w io.Writer, grid *Grid) (ext string, err error)
}

// Decoder reads a texture back into a Grid. PNGDecoder and WebPDecoder
// implement it; the module has no .sog reader that calls it.
type Decoder interface {
	Decode(r io.Reader) (*Grid, error)
}

// PNGEncoder implements Encoder with the standard library's lossless PNG
// codec, the stand-in default for the out-of-scope WebP encoder.
type PNGEncoder struct{}

// Encode writes grid as a PNG. PNG is lossless, matching the spec's
// requirement that texture packing itself introduces no additional loss
// beyond the quantization already performed before pixels are written.
func (PNGEncoder) Encode(w io.Writer, grid *Grid) (string, error) {
	if err := png.Encode(w, grid.image()); err != nil {
		return "", sferrors.Wrapf(sferrors.Resource, sferrors.CodeFileWriteFailed, err, "encode texture")
	}
	return ".png", nil
}

// PNGDecoder implements Decoder with the standard library's PNG codec.
type PNGDecoder struct{}

func (PNGDecoder) Decode(r io.Reader) (*Grid, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeDecodeFailed, err, "decode texture")
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			g.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return g
}

// EncodeBytes is a convenience wrapper returning the encoded bytes and
// extension directly.
func EncodeBytes(enc Encoder, grid *Grid) ([]byte, string, error) {
	var buf bytes.Buffer
	ext, err := enc.Encode(&buf, grid)
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ext, nil
}
