package api

import (
	"net/url"
	"strings"
	"time"

	"github.com/lox/weatherdash/internal/kv"
	"github.com/lox/weatherdash/internal/models"
)

// IndexData contains everything the dashboard page renders.
type IndexData struct {
	Cities  []CityView
	Notice  string
	Storage string
}

// CityView is one card on the dashboard page. Values are copied from the
// stored snapshot as-is.
type CityView struct {
	Index      int
	Last       bool
	Name       string
	Pinned     bool
	Loading    bool
	Error      string
	HasWeather bool
	Place      string
	LocalTime  string
	TempC      float64
	FeelsLikeC float64
	Condition  string
	IconURL    string
	Humidity   int
	WindKph    float64
	WindDir    string
	PressureMb float64
	Days       []DayView
	CardURL    string
}

type DayView struct {
	Label     string
	MaxTempC  float64
	MinTempC  float64
	Condition string
	IconURL   string
}

func newCityView(i, n int, c models.City, loading bool) CityView {
	v := CityView{
		Index:   i,
		Last:    i == n-1,
		Name:    c.Name,
		Pinned:  c.IsPinned,
		Loading: loading,
		Error:   c.Error,
		CardURL: "/cities/" + url.PathEscape(c.Name) + "/card.png",
	}

	snap := c.WeatherData
	if snap == nil {
		return v
	}
	v.HasWeather = true
	v.Place = joinNonEmpty(", ", snap.Location.Region, snap.Location.Country)
	v.LocalTime = snap.Location.LocalTime
	v.TempC = snap.Current.TempC
	v.FeelsLikeC = snap.Current.FeelsLikeC
	v.Condition = snap.Current.Condition.Text
	v.IconURL = iconURL(snap.Current.Condition.Icon)
	v.Humidity = snap.Current.Humidity
	v.WindKph = snap.Current.WindKph
	v.WindDir = snap.Current.WindDir
	v.PressureMb = snap.Current.PressureMb

	for _, fd := range snap.Forecast.ForecastDay {
		label := fd.Date
		if t, err := time.Parse("2006-01-02", fd.Date); err == nil {
			label = t.Format("Mon")
		}
		v.Days = append(v.Days, DayView{
			Label:     label,
			MaxTempC:  fd.Day.MaxTempC,
			MinTempC:  fd.Day.MinTempC,
			Condition: fd.Day.Condition.Text,
			IconURL:   iconURL(fd.Day.Condition.Icon),
		})
	}
	return v
}

// iconURL makes the provider's protocol-relative icon paths absolute.
func iconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status  string `json:"status"`
	Cities  int    `json:"cities"`
	Storage string `json:"storage"`
	// Persisted is set when the backend tracks the stored city list.
	Persisted *kv.EntryStats `json:"persisted,omitempty"`
}
