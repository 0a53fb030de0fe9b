package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/lox/weatherdash/internal/forecast"
	"github.com/lox/weatherdash/internal/models"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Card dimensions in pixels.
const (
	CardWidth  = 640
	CardHeight = 360
)

const cardMargin = 32

// CardDay is one column of the forecast strip.
type CardDay struct {
	Label string
	MaxC  float64
	MinC  float64
}

// CardData contains the text drawn on a city card.
type CardData struct {
	City       string
	Place      string
	Pinned     bool
	HasWeather bool
	TempC      float64
	Condition  string
	Error      string
	Days       []CardDay
}

// CardDataFromCity copies what a card shows out of a city entry.
func CardDataFromCity(c models.City) CardData {
	data := CardData{
		City:   c.Name,
		Pinned: c.IsPinned,
		Error:  c.Error,
	}
	snap := c.WeatherData
	if snap == nil {
		return data
	}

	data.HasWeather = true
	data.TempC = snap.Current.TempC
	data.Condition = snap.Current.Condition.Text
	var place []string
	for _, p := range []string{snap.Location.Region, snap.Location.Country} {
		if p != "" {
			place = append(place, p)
		}
	}
	data.Place = strings.Join(place, ", ")

	for _, fd := range snap.Forecast.ForecastDay {
		label := fd.Date
		if t, err := time.Parse("2006-01-02", fd.Date); err == nil {
			label = t.Format("Mon")
		}
		data.Days = append(data.Days, CardDay{Label: label, MaxC: fd.Day.MaxTempC, MinC: fd.Day.MinTempC})
		if len(data.Days) == 5 {
			break
		}
	}
	return data
}

// RenderCard composites the card text over a backdrop image.
func RenderCard(backdrop []byte, data CardData) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(backdrop))
	if err != nil {
		return nil, fmt.Errorf("decode backdrop: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), CardWidth, CardHeight), xdraw.Src, nil)

	drawGradientOverlay(dst)
	drawCardText(dst, data)
	return encodePNG(dst)
}

// RenderFallbackCard draws the card on a plain gradient chosen by condition.
func RenderFallbackCard(data CardData, condition forecast.WeatherCondition) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))

	p, ok := fallbackPalette[condition]
	if !ok {
		p = fallbackPalette[forecast.ConditionClearCool]
	}
	for y := 0; y < CardHeight; y++ {
		progress := float64(y) / float64(CardHeight)
		c := color.RGBA{
			R: lerp(p.top.R, p.bottom.R, progress),
			G: lerp(p.top.G, p.bottom.G, progress),
			B: lerp(p.top.B, p.bottom.B, progress),
			A: 255,
		}
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	drawGradientOverlay(img)
	drawCardText(img, data)
	return encodePNG(img)
}

type gradient struct {
	top, bottom color.RGBA
}

var fallbackPalette = map[forecast.WeatherCondition]gradient{
	forecast.ConditionClearWarm:    {color.RGBA{74, 144, 226, 255}, color.RGBA{246, 190, 120, 255}},
	forecast.ConditionClearCool:    {color.RGBA{60, 110, 180, 255}, color.RGBA{150, 190, 225, 255}},
	forecast.ConditionPartlyCloudy: {color.RGBA{90, 130, 175, 255}, color.RGBA{180, 195, 210, 255}},
	forecast.ConditionMostlyCloudy: {color.RGBA{95, 105, 120, 255}, color.RGBA{160, 165, 175, 255}},
	forecast.ConditionLightRain:    {color.RGBA{70, 85, 105, 255}, color.RGBA{125, 140, 160, 255}},
	forecast.ConditionHeavyRain:    {color.RGBA{40, 50, 65, 255}, color.RGBA{85, 95, 110, 255}},
	forecast.ConditionStorm:        {color.RGBA{30, 30, 50, 255}, color.RGBA{80, 70, 100, 255}},
	forecast.ConditionFog:          {color.RGBA{150, 155, 160, 255}, color.RGBA{200, 200, 200, 255}},
	forecast.ConditionSnow:         {color.RGBA{170, 185, 205, 255}, color.RGBA{235, 240, 248, 255}},
	forecast.ConditionHot:          {color.RGBA{210, 120, 50, 255}, color.RGBA{245, 200, 110, 255}},
	forecast.ConditionFrost:        {color.RGBA{80, 120, 170, 255}, color.RGBA{200, 220, 240, 255}},
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

// coverRect returns the centered region of src with the destination's
// aspect ratio, so scaling it fills the card without distortion.
func coverRect(src image.Rectangle, w, h int) image.Rectangle {
	srcW, srcH := src.Dx(), src.Dy()
	if srcW*h > srcH*w {
		cropW := srcH * w / h
		x0 := src.Min.X + (srcW-cropW)/2
		return image.Rect(x0, src.Min.Y, x0+cropW, src.Max.Y)
	}
	cropH := srcW * h / w
	y0 := src.Min.Y + (srcH-cropH)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+cropH)
}

// drawGradientOverlay darkens the lower part of the image for text readability.
func drawGradientOverlay(img *image.RGBA) {
	bounds := img.Bounds()
	gradientHeight := bounds.Dy() * 2 / 3

	for y := bounds.Max.Y - gradientHeight; y < bounds.Max.Y; y++ {
		progress := float64(y-(bounds.Max.Y-gradientHeight)) / float64(gradientHeight)
		// Ease-in curve for smoother gradient
		progress = progress * progress
		alpha := progress * 0.75

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			orig := img.RGBAAt(x, y)
			orig.R = uint8(float64(orig.R) * (1 - alpha))
			orig.G = uint8(float64(orig.G) * (1 - alpha))
			orig.B = uint8(float64(orig.B) * (1 - alpha))
			img.SetRGBA(x, y, orig)
		}
	}
}

var (
	white     = color.RGBA{255, 255, 255, 255}
	lightGray = color.RGBA{215, 215, 215, 255}
	errorRed  = color.RGBA{255, 150, 150, 255}
)

func drawCardText(img *image.RGBA, data CardData) {
	maxX := CardWidth - cardMargin

	drawText(img, data.City, cardMargin, 76, white, 4, maxX)
	if data.Pinned {
		const badge = "PINNED"
		w := textWidth(badge) * 2
		drawText(img, badge, maxX-w, 44, white, 2, maxX)
	}
	if data.Place != "" {
		drawText(img, data.Place, cardMargin, 112, lightGray, 2, maxX)
	}

	if !data.HasWeather {
		drawText(img, "--", cardMargin, 230, white, 8, maxX)
		if data.Error != "" {
			drawText(img, data.Error, cardMargin, 280, errorRed, 2, maxX)
		}
		return
	}

	drawTemperature(img, data.TempC, cardMargin, 230, 8)
	if data.Condition != "" {
		drawText(img, data.Condition, cardMargin, 274, lightGray, 3, maxX)
	}

	// A failed refresh keeps the old weather; its error takes the strip's place.
	if data.Error != "" {
		drawText(img, data.Error, cardMargin, 330, errorRed, 2, maxX)
		return
	}

	if len(data.Days) == 0 {
		return
	}
	colW := (CardWidth - 2*cardMargin) / len(data.Days)
	for i, d := range data.Days {
		x := cardMargin + i*colW
		drawText(img, d.Label, x, 316, lightGray, 2, x+colW)
		drawText(img, fmt.Sprintf("%.0f/%.0f", d.MaxC, d.MinC), x, 344, white, 2, x+colW)
	}
}

// drawTemperature draws "NN°C". The bitmap face has no degree glyph, so the
// ring is drawn directly.
func drawTemperature(img *image.RGBA, tempC float64, x, y, scale int) {
	num := fmt.Sprintf("%.0f", tempC)
	drawText(img, num, x, y, white, scale, CardWidth)

	x += textWidth(num)*scale + scale
	top := y - basicfont.Face7x13.Metrics().Ascent.Ceil()*scale
	r := max(scale, 2)
	cx, cy := x+r, top+r+scale
	for py := cy - r; py <= cy+r; py++ {
		for px := cx - r; px <= cx+r; px++ {
			d := (px-cx)*(px-cx) + (py-cy)*(py-cy)
			if d <= r*r && d >= (r-scale/3-1)*(r-scale/3-1) {
				img.SetRGBA(px, py, white)
			}
		}
	}
	drawText(img, "C", cx+r+scale, y, white, scale, CardWidth)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// drawText draws s with its baseline at y, magnified by scale. The bitmap
// face is rendered at its native size then scaled up, and text that would
// pass maxX is truncated.
func drawText(img *image.RGBA, s string, x, y int, col color.Color, scale, maxX int) {
	face := basicfont.Face7x13
	s = truncate(s, (maxX-x)/scale)
	w := textWidth(s)
	if w == 0 {
		return
	}
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	h := m.Height.Ceil()

	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(0), Y: fixed.I(ascent)},
	}
	d.DrawString(s)

	top := y - ascent*scale
	r := image.Rect(x, top, x+w*scale, top+h*scale)
	xdraw.NearestNeighbor.Scale(img, r, tmp, tmp.Bounds(), xdraw.Over, nil)
}

// truncate shortens s to fit maxWidth unscaled pixels, ending in "..".
func truncate(s string, maxWidth int) string {
	if textWidth(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if out := string(runes) + ".."; textWidth(out) <= maxWidth {
			return out
		}
	}
	return ""
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// CardCache caches rendered cards for a short period. Entries are keyed by a
// caller-chosen string that changes whenever the card's content would.
type CardCache struct {
	mu       sync.RWMutex
	entries  map[string]cardEntry
	cacheTTL time.Duration
}

type cardEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCardCache creates a new card cache with the specified TTL.
func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{
		entries:  make(map[string]cardEntry),
		cacheTTL: ttl,
	}
}

func (c *CardCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (c *CardCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cardEntry{data: data, expiresAt: now.Add(c.cacheTTL)}
}
