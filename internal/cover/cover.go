// Package cover renders the digest's cover image: a white-to-blue gradient
// with the headline and the date.
package cover

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1200
	Height = 630

	DefaultTitle = "Weekly Radiology AI News Update"

	titleScale = 4
	dateScale  = 3
)

var navy = color.RGBA{R: 0, G: 0, B: 128, A: 255}

// Generator writes one PNG per cycle into Dir, named cover_YYYYMMDD.png.
type Generator struct {
	Dir   string
	Title string
}

func New(dir string) *Generator {
	return &Generator{Dir: dir, Title: DefaultTitle}
}

// Create renders the cover for date and returns the file path.
func (g *Generator) Create(date time.Time) (string, error) {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create cover dir: %w", err)
	}
	path := filepath.Join(g.Dir, "cover_"+date.Format("20060102")+".png")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create cover: %w", err)
	}
	if err := png.Encode(f, Render(g.Title, date)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode cover: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close cover: %w", err)
	}
	return path, nil
}

// Render draws the cover in memory.
func Render(title string, date time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))

	// 自上而下由白渐变到蓝
	for y := 0; y < Height; y++ {
		c := uint8(255 * (1 - float64(y)/Height))
		line := color.RGBA{R: c, G: c, B: 255, A: 255}
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, line)
		}
	}

	drawText(img, title, image.Pt(100, 100), titleScale)
	drawText(img, date.Format("January 02, 2006"), image.Pt(100, 200), dateScale)
	return img
}

// drawText renders s with the 7x13 bitmap face and scales it up by
// nearest-neighbour so the glyphs stay crisp.
func drawText(dst *image.RGBA, s string, at image.Point, scale int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()
	if w == 0 {
		return
	}

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(navy),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	target := image.Rect(at.X, at.Y, at.X+w*scale, at.Y+h*scale).Intersect(dst.Bounds())
	draw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), draw.Over, nil)
}
