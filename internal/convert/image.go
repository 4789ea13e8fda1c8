package convert

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNoImage is returned by pictures that carry no decodable raster data.
var ErrNoImage = errors.New("picture has no raster image")

// blobPicture is a picture backed by encoded image bytes.
type blobPicture struct {
	data []byte
	err  error
}

// Image decodes the picture with whichever registered format matches.
func (p *blobPicture) Image() (image.Image, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.data) == 0 {
		return nil, ErrNoImage
	}
	img, _, err := image.Decode(bytes.NewReader(p.data))
	if err != nil {
		return nil, fmt.Errorf("decode picture: %w", err)
	}
	return img, nil
}

// rasterPicture is a picture that was already materialized.
type rasterPicture struct {
	img image.Image
	err error
}

func (p *rasterPicture) Image() (image.Image, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.img, nil
}

// dataURIPicture wraps an inline "data:" image source. Anything else yields
// ok=false; linked images are not fetched.
func dataURIPicture(src string) (*blobPicture, bool) {
	if !strings.HasPrefix(src, "data:") {
		return nil, false
	}
	meta, payload, found := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !found {
		return &blobPicture{err: fmt.Errorf("malformed data uri")}, true
	}
	if !strings.HasPrefix(meta, "image/") {
		return nil, false
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return &blobPicture{err: fmt.Errorf("decode data uri: %w", err)}, true
		}
		return &blobPicture{data: data}, true
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return &blobPicture{err: fmt.Errorf("decode data uri: %w", err)}, true
	}
	return &blobPicture{data: []byte(text)}, true
}
