package models

// Condition is a weather condition description as returned by the provider.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	LocalTime string  `json:"localtime"`
}

type Current struct {
	TempC      float64   `json:"temp_c"`
	TempF      float64   `json:"temp_f"`
	Condition  Condition `json:"condition"`
	Humidity   int       `json:"humidity"`
	WindKph    float64   `json:"wind_kph"`
	WindDir    string    `json:"wind_dir"`
	PressureMb float64   `json:"pressure_mb"`
	FeelsLikeC float64   `json:"feelslike_c"`
	UV         float64   `json:"uv"`
}

type DaySummary struct {
	MaxTempC      float64   `json:"maxtemp_c"`
	MinTempC      float64   `json:"mintemp_c"`
	AvgTempC      float64   `json:"avgtemp_c"`
	MaxWindKph    float64   `json:"maxwind_kph"`
	TotalPrecipMm float64   `json:"totalprecip_mm"`
	AvgHumidity   float64   `json:"avghumidity"`
	Condition     Condition `json:"condition"`
}

type HourForecast struct {
	Time         string    `json:"time"`
	TempC        float64   `json:"temp_c"`
	Condition    Condition `json:"condition"`
	Humidity     int       `json:"humidity"`
	WindKph      float64   `json:"wind_kph"`
	ChanceOfRain int       `json:"chance_of_rain"`
}

type ForecastDay struct {
	Date      string         `json:"date"`
	DateEpoch int64          `json:"date_epoch"`
	Day       DaySummary     `json:"day"`
	Hour      []HourForecast `json:"hour"`
}

type Forecast struct {
	ForecastDay []ForecastDay `json:"forecastday"`
}

// WeatherSnapshot is the full forecast payload for one city at fetch time.
// It is replaced wholesale on every successful fetch and never merged.
type WeatherSnapshot struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
	Forecast Forecast `json:"forecast"`
}

// City is one dashboard entry, keyed by Name.
type City struct {
	Name        string           `json:"name"`
	IsPinned    bool             `json:"isPinned"`
	WeatherData *WeatherSnapshot `json:"weatherData,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// HasError reports whether the last fetch for this city failed.
func (c City) HasError() bool {
	return c.Error != ""
}

// DashboardState is the top-level persisted state. Order of Cities is the
// render and persistence order.
type DashboardState struct {
	Cities  []City  `json:"cities"`
	Loading bool    `json:"loading"`
	Error   *string `json:"error"`
}

// IsEmpty reports whether the state is the empty initial state.
func (s DashboardState) IsEmpty() bool {
	return len(s.Cities) == 0 && !s.Loading && s.Error == nil
}

// Clone returns a copy that shares no mutable slices or pointers with s.
// Snapshots are immutable once attached, so they are shared by pointer.
func (s DashboardState) Clone() DashboardState {
	out := DashboardState{Loading: s.Loading}
	if s.Cities != nil {
		out.Cities = make([]City, len(s.Cities))
		copy(out.Cities, s.Cities)
	}
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	return out
}

// Names returns the city names in order.
func (s DashboardState) Names() []string {
	names := make([]string, len(s.Cities))
	for i, c := range s.Cities {
		names[i] = c.Name
	}
	return names
}
