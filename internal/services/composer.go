package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strings"
	"unicode"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// SlideComposer renders finished slides. Compose never changes the
// base image's pixel dimensions; Normalize is the separate step that
// fits a slide into the platform's target frame.
type SlideComposer interface {
	Compose(base []byte, overlayText string, style domain.TextStyle) ([]byte, error)
	Normalize(img []byte, targetWidth, targetHeight int) ([]byte, error)
}

type slideComposer struct {
	log     *logger.Logger
	font    *truetype.Font
	quality int
}

// NewSlideComposer parses the overlay font once. An empty fontPath
// falls back to the bundled Go Regular face.
func NewSlideComposer(log *logger.Logger, fontPath string, quality int) (SlideComposer, error) {
	fontBytes := goregular.TTF
	if strings.TrimSpace(fontPath) != "" {
		raw, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read overlay font: %w", err)
		}
		fontBytes = raw
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &slideComposer{
		log:     log.With("service", "SlideComposer"),
		font:    parsedFont,
		quality: quality,
	}, nil
}

func (sc *slideComposer) face(size float64) font.Face {
	return truetype.NewFace(sc.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func (sc *slideComposer) Compose(base []byte, overlayText string, style domain.TextStyle) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("decode base image: %w", err)
	}

	dc := gg.NewContextForImage(img)

	text := prepareOverlayText(overlayText)
	if text != "" {
		imgW := float64(dc.Width())
		imgH := float64(dc.Height())

		dc.SetFontFace(sc.face(style.FontSize))

		maxWidth := imgW * float64(style.MaxWidthPct) / 100
		lines := wrapText(dc, text, maxWidth)

		_, lineHeight := dc.MeasureString("Ay")
		totalHeight := lineHeight * float64(len(lines))

		anchorY := imgH * float64(style.VerticalPosPct) / 100
		startY := anchorY - totalHeight/2 + lineHeight/2

		for i, line := range lines {
			cx := imgW / 2
			cy := startY + float64(i)*lineHeight
			sc.drawLineWithStroke(dc, line, cx, cy, style)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: sc.quality}); err != nil {
		return nil, fmt.Errorf("encode slide: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLineWithStroke draws the outline as an offset grid in the stroke
// color, then the fill on top, so the text stays legible over any
// background.
func (sc *slideComposer) drawLineWithStroke(dc *gg.Context, line string, cx, cy float64, style domain.TextStyle) {
	sw := style.StrokeWidth
	if sw > 0 {
		dc.SetColor(style.StrokeColor)
		for dx := -sw; dx <= sw; dx++ {
			for dy := -sw; dy <= sw; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				dc.DrawStringAnchored(line, cx+float64(dx), cy+float64(dy), 0.5, 0.5)
			}
		}
	}
	dc.SetColor(style.FontColor)
	dc.DrawStringAnchored(line, cx, cy, 0.5, 0.5)
}

// wrapText greedily packs words into lines no wider than maxWidth. A
// single word wider than the budget gets its own line rather than an
// error.
func wrapText(dc *gg.Context, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	lines := []string{}
	current := ""

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		w, _ := dc.MeasureString(candidate)
		if w <= maxWidth || current == "" {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// prepareOverlayText strips trailing punctuation and the trailing
// emoji the hook phrases carry; most fonts can't rasterize emoji and a
// tofu box ruins the slide.
func prepareOverlayText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.TrimRight(text, ".,!?;: ")
	runes := []rune(text)
	if len(runes) > 0 && runes[len(runes)-1] > unicode.MaxASCII && !unicode.IsLetter(runes[len(runes)-1]) {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes))
}

// Normalize flattens transparency onto white, scales to fill the
// target frame, and center-crops the overflow. Output is JPEG.
func (sc *slideComposer) Normalize(imgBytes []byte, targetWidth, targetHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("image has zero dimension")
	}

	targetRatio := float64(targetWidth) / float64(targetHeight)
	srcRatio := float64(srcW) / float64(srcH)

	var scaledW, scaledH int
	if srcRatio > targetRatio {
		// Wider than the frame: fill height, crop the sides.
		scaledH = targetHeight
		scaledW = int(float64(srcW) * float64(targetHeight) / float64(srcH))
	} else {
		// Taller than the frame: fill width, crop top/bottom.
		scaledW = targetWidth
		scaledH = int(float64(srcH) * float64(targetWidth) / float64(srcW))
	}
	if scaledW < targetWidth {
		scaledW = targetWidth
	}
	if scaledH < targetHeight {
		scaledH = targetHeight
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	// White base flattens any alpha channel.
	draw.Draw(scaled, scaled.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)

	cropX := (scaledW - targetWidth) / 2
	cropY := (scaledH - targetHeight) / 2
	final := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(final, final.Bounds(), scaled, image.Point{X: cropX, Y: cropY}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: sc.quality}); err != nil {
		return nil, fmt.Errorf("encode normalized image: %w", err)
	}
	return buf.Bytes(), nil
}
