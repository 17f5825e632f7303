package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/jointrnn/metrics"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 144.0
	fontsize        = 12.0
	lineheight      = 1.2
	dummyLongString = `test_err_rate: 1000000.0000`
	maxLines        = 7 // title, header, and up to five fields
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{253},
}

// Encoder renders every report as one frame of an animated GIF. It implements metrics.Sink.
type Encoder struct {
	H, W int
	font.Drawer

	Name string // drawn on top of every frame
	out  *gif.GIF
	io.Writer
	face font.Face

	maxH, maxW  int // maxHeight and maxWidth
	padH, padW  int // padding so everything don't start at the topleft
	initialized bool
}

// NewGifEncoder with height and width. The animation is written to w on Flush.
func NewGifEncoder(w io.Writer, name string, maxH, maxW int) *Encoder {
	return &Encoder{
		H:      -1,
		W:      -1,
		Name:   name,
		Writer: w,
		maxH:   maxH,
		maxW:   maxW,
		padH:   10,
		padW:   10,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: -1},
	}
}

func (enc *Encoder) init() {
	enc.face = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	enc.Drawer.Src = image.Black
	enc.Drawer.Face = enc.face

	maxW := maxInt(font.MeasureString(enc.Face, enc.Name).Ceil(), font.MeasureString(enc.Face, dummyLongString).Ceil())
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	w := maxW + 2*enc.padW
	h := (maxLines+1)*dy + 2*enc.padH

	w = minInt(w, enc.maxW)
	h = minInt(h, enc.maxH)
	if w == enc.maxW {
		enc.padW = 0
	}
	if h == enc.maxH {
		enc.padH = 0
	}
	enc.H = h
	enc.W = w
	enc.initialized = true
}

// Encode draws a frame for r.
func (enc *Encoder) Encode(r metrics.Report) error {
	if !enc.initialized {
		enc.init()
	}

	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)
	enc.Dst = im

	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	y := dy
	line := func(s string) {
		enc.Dot = fixed.P(enc.padW, y+enc.padH)
		enc.DrawString(s)
		y += dy
	}
	line(enc.Name)
	line(fmt.Sprintf("%v iter %d", r.Phase, r.Iter))
	for _, f := range r.Fields() {
		line(fmt.Sprintf("%s: %.4f", f.Name, f.Value))
	}

	// evaluations stay on screen longer
	var delay int
	if r.Phase == metrics.Testing {
		delay = 300
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// Frames returns the number of frames rendered so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if enc.Writer == nil {
		return errors.New("gif encoder has no writer")
	}
	if len(enc.out.Image) == 0 {
		return nil
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
