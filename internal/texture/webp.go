package texture

import (
	"io"

	"golang.org/x/image/webp"

	sferrors "github.com/sogforge/sogforge/internal/errors"
)

// WebPDecoder decodes an existing .webp texture using golang.org/x/image's
// decode-only WebP support — the one WebP reference present anywhere in the
// retrieved corpus (registered as a blank import for format sniffing in
// cogentcore's imagex package). There is no corresponding lossless encoder
// in the ecosystem as represented by the corpus, so only the read side of
// this interface pair has a WebP-backed implementation; see PNGEncoder for
// the write side.
type WebPDecoder struct{}

func (WebPDecoder) Decode(r io.Reader) (*Grid, error) {
	img, err := webp.Decode(r)
	if err != nil {
		return nil, sferrors.Wrapf(sferrors.FormatError, sferrors.CodeDecodeFailed, err, "decode webp texture")
	}
	return fromImage(img), nil
}
