package music

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"jukebox/bot/common"
	"jukebox/models"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// CardFileName is the attachment name the now playing embed references
const CardFileName = "nowplaying.png"

const (
	cardWidth   = 560
	cardHeight  = 150
	cardPadding = 20
)

// CardGenerator renders the /nowplaying progress card
type CardGenerator struct {
	bold    *truetype.Font
	regular *truetype.Font
	mono    *truetype.Font
}

// NewCardGenerator parses the embedded Go fonts
func NewCardGenerator() (*CardGenerator, error) {
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	mono, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mono font: %w", err)
	}
	return &CardGenerator{bold: bold, regular: regular, mono: mono}, nil
}

// Render draws the track title, author and a progress bar as a PNG
func (g *CardGenerator) Render(track models.Track, position time.Duration, paused bool) ([]byte, error) {
	start := time.Now()
	defer func() {
		log.WithField("duration_ms", time.Since(start).Milliseconds()).
			Debug("Now playing card rendered")
	}()

	dc := gg.NewContext(cardWidth, cardHeight)

	bg := gg.NewLinearGradient(0, 0, cardWidth, cardHeight)
	bg.AddColorStop(0, color.RGBA{R: 24, G: 26, B: 38, A: 255})
	bg.AddColorStop(1, color.RGBA{R: 44, G: 30, B: 64, A: 255})
	dc.SetFillStyle(bg)
	dc.DrawRoundedRectangle(0, 0, cardWidth, cardHeight, 14)
	dc.Fill()

	// Faces hold glyph caches and are not safe for concurrent use, so each render gets its own.
	dc.SetFontFace(g.face(g.bold, 20))
	dc.SetRGB(1, 1, 1)
	dc.DrawString(fitText(dc, track.Info.Title, cardWidth-2*cardPadding), cardPadding, 42)

	dc.SetFontFace(g.face(g.regular, 14))
	dc.SetRGB(0.75, 0.75, 0.85)
	dc.DrawString(fitText(dc, track.Info.Author, cardWidth-2*cardPadding), cardPadding, 66)

	barY := 100.0
	barWidth := float64(cardWidth - 2*cardPadding)
	dc.SetRGBA(1, 1, 1, 0.15)
	dc.DrawRoundedRectangle(cardPadding, barY, barWidth, 8, 4)
	dc.Fill()

	fraction := progressFraction(track, position)
	if fraction > 0 {
		fill := gg.NewLinearGradient(cardPadding, barY, cardPadding+barWidth, barY)
		fill.AddColorStop(0, color.RGBA{R: 88, G: 101, B: 242, A: 255})
		fill.AddColorStop(1, color.RGBA{R: 235, G: 69, B: 158, A: 255})
		dc.SetFillStyle(fill)
		dc.DrawRoundedRectangle(cardPadding, barY, barWidth*fraction, 8, 4)
		dc.Fill()
	}
	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(cardPadding+barWidth*fraction, barY+4, 7)
	dc.Fill()

	dc.SetFontFace(g.face(g.mono, 12))
	dc.SetRGB(0.85, 0.85, 0.9)
	dc.DrawString(common.FormatDuration(position), cardPadding, barY+30)

	right := common.FormatTrackLength(track)
	if paused {
		right = "PAUSED  " + right
	}
	dc.DrawStringAnchored(right, cardWidth-cardPadding, barY+30, 1, 0)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *CardGenerator) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// progressFraction is 0..1; streams and unknown lengths stay at 0
func progressFraction(track models.Track, position time.Duration) float64 {
	length := track.Duration()
	if track.Info.IsStream || length <= 0 {
		return 0
	}
	return max(0, min(1, float64(position)/float64(length)))
}

// fitText trims s with an ellipsis until it fits in width pixels
func fitText(dc *gg.Context, s string, width int) string {
	if w, _ := dc.MeasureString(s); w <= float64(width) {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := string(runes[:n]) + "…"
		if w, _ := dc.MeasureString(candidate); w <= float64(width) {
			return candidate
		}
	}
	return "…"
}
