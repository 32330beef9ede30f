// Package media inspects and scales downloaded photo bytes
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/disintegration/gift"
	"github.com/h2non/filetype"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrNotAnImage is returned when bytes do not look like a supported image
var ErrNotAnImage = errors.New("Not an image")

// Kind describes the detected type of some image bytes
type Kind struct {
	Extension string `json:"ext"`
	Mime      string `json:"mime"`
}

// Sniff detects the image type from the leading bytes of data
func Sniff(data []byte) (Kind, error) {
	if !filetype.IsImage(data) {
		return Kind{}, ErrNotAnImage
	}
	t, err := filetype.Match(data)
	if err != nil {
		return Kind{}, err
	}
	return Kind{Extension: t.Extension, Mime: t.MIME.Value}, nil
}

// Meta is the metadata extracted from downloaded image bytes
type Meta struct {
	Kind    Kind
	TakenAt *time.Time
}

// Inspect sniffs data and reads its EXIF capture time if present. Missing or
// broken EXIF data is not an error, most resized photos carry none.
func Inspect(data []byte) (Meta, error) {
	kind, err := Sniff(data)
	if err != nil {
		return Meta{}, err
	}
	meta := Meta{Kind: kind}
	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if taken, err := x.DateTime(); err == nil {
			meta.TakenAt = &taken
		}
	}
	return meta, nil
}

var (
	Small  = ThumbSize{120, "S"}
	Medium = ThumbSize{240, "M"}
	Large  = ThumbSize{480, "L"}

	ThumbSizes = map[string]ThumbSize{
		Small.Name:  Small,
		Medium.Name: Medium,
		Large.Name:  Large,
	}
)

type ThumbSize struct {
	width int
	Name  string
}

func (size ThumbSize) BoundsOf(img image.Rectangle) image.Rectangle {
	if img.Dx() > img.Dy() {
		return image.Rect(0, 0, size.width, (size.width*img.Dy())/img.Dx())
	} else {
		return image.Rect(0, 0, (size.width*img.Dx())/img.Dy(), size.width)
	}
}

// Thumbnail scales data down to fit size and writes it as JPEG to out. Images
// already smaller than size are not enlarged.
func Thumbnail(data []byte, size ThumbSize, out io.Writer) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot decode image: %w", err)
	}
	targetSize := size.BoundsOf(img.Bounds())
	if targetSize.Dx() >= img.Bounds().Dx() || targetSize.Empty() {
		return jpeg.Encode(out, img, nil)
	}
	thumb := image.NewRGBA(targetSize)
	filter := gift.New(
		gift.ResizeToFit(targetSize.Dx(), targetSize.Dy(), gift.LinearResampling),
	)
	filter.Draw(thumb, img)
	return jpeg.Encode(out, thumb, nil)
}
