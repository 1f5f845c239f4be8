package imaging

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Item is one panel of a strip: an image file and the clock label stamped
// onto it.
type Item struct {
	Path  string
	Clock string
}

// Options controls strip layout.
type Options struct {
	PanelWidth int // each panel is scaled to this width
	Padding    int // white gap between panels and around the edge
}

// DefaultOptions matches the layout the push providers render well.
func DefaultOptions() Options {
	return Options{PanelWidth: 720, Padding: 12}
}

// Collage stacks the items vertically into one strip image, each panel scaled
// to the configured width with its clock label watermarked bottom-right.
// Deterministic for the same ordered input. Empty input returns (nil, nil).
func Collage(items []Item, opts Options) (image.Image, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if opts.PanelWidth <= 0 {
		opts = DefaultOptions()
	}

	panels := make([]*image.RGBA, 0, len(items))
	for _, item := range items {
		src, err := loadImage(item.Path)
		if err != nil {
			return nil, err
		}
		panel := scaleToWidth(src, opts.PanelWidth)
		if item.Clock != "" {
			watermark(panel, item.Clock)
		}
		panels = append(panels, panel)
	}

	height := opts.Padding
	for _, p := range panels {
		height += p.Bounds().Dy() + opts.Padding
	}
	width := opts.PanelWidth + 2*opts.Padding

	strip := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(strip, strip.Bounds(), image.White, image.Point{}, draw.Src)

	y := opts.Padding
	for _, p := range panels {
		r := image.Rect(opts.Padding, y, opts.Padding+p.Bounds().Dx(), y+p.Bounds().Dy())
		draw.Draw(strip, r, p, p.Bounds().Min, draw.Src)
		y += p.Bounds().Dy() + opts.Padding
	}
	return strip, nil
}

func scaleToWidth(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// watermark stamps label in the bottom-right corner over a translucent
// backing so it stays readable on any panel.
func watermark(panel *image.RGBA, label string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()

	const pad = 6
	b := panel.Bounds()
	box := image.Rect(
		b.Max.X-textWidth-2*pad,
		b.Max.Y-face.Height-2*pad,
		b.Max.X,
		b.Max.Y,
	).Intersect(b)

	backing := image.NewUniform(color.RGBA{0, 0, 0, 140})
	draw.Draw(panel, box, backing, image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  panel,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 230}),
		Face: face,
		Dot: fixed.P(
			b.Max.X-textWidth-pad,
			b.Max.Y-pad-(face.Height-face.Ascent),
		),
	}
	d.DrawString(label)
}
