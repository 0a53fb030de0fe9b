// Package forecast turns a city's weather snapshot into the scene used for
// its card image.
package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/weatherdash/internal/models"
)

// WeatherCondition represents a categorized weather state for image generation.
type WeatherCondition string

const (
	ConditionClearWarm    WeatherCondition = "clear_warm"
	ConditionClearCool    WeatherCondition = "clear_cool"
	ConditionPartlyCloudy WeatherCondition = "partly_cloudy"
	ConditionMostlyCloudy WeatherCondition = "mostly_cloudy"
	ConditionLightRain    WeatherCondition = "light_rain"
	ConditionHeavyRain    WeatherCondition = "heavy_rain"
	ConditionStorm        WeatherCondition = "storm"
	ConditionFog          WeatherCondition = "fog"
	ConditionSnow         WeatherCondition = "snow"
	ConditionHot          WeatherCondition = "hot"
	ConditionFrost        WeatherCondition = "frost"
)

// TimeOfDay represents the lighting period.
type TimeOfDay string

const (
	TimeDay   TimeOfDay = "day"
	TimeDusk  TimeOfDay = "dusk"
	TimeNight TimeOfDay = "night"
	TimeDawn  TimeOfDay = "dawn"
)

// localTimeLayout is the format of the provider's location.localtime field.
const localTimeLayout = "2006-01-02 15:04"

// GetTimeOfDay returns the lighting period for an hour of the day.
func GetTimeOfDay(t time.Time) TimeOfDay {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 7:
		return TimeDawn
	case hour >= 7 && hour < 17:
		return TimeDay
	case hour >= 17 && hour < 20:
		return TimeDusk
	default:
		return TimeNight
	}
}

// LocalTimeOfDay reads the city's local clock from the snapshot. A missing or
// malformed localtime is treated as daytime.
func LocalTimeOfDay(loc models.Location) TimeOfDay {
	t, err := time.Parse(localTimeLayout, loc.LocalTime)
	if err != nil {
		return TimeDay
	}
	return GetTimeOfDay(t)
}

// ExtractCondition determines the weather condition category from the
// provider's condition text and the current temperature.
func ExtractCondition(text string, tempC float64) WeatherCondition {
	lower := strings.ToLower(text)

	// Snow and storms describe the scene better than temperature does
	if strings.Contains(lower, "snow") || strings.Contains(lower, "sleet") ||
		strings.Contains(lower, "blizzard") || strings.Contains(lower, "ice pellets") {
		return ConditionSnow
	}
	if strings.Contains(lower, "thunder") || strings.Contains(lower, "storm") {
		return ConditionStorm
	}

	if tempC >= 35 {
		return ConditionHot
	}
	if tempC <= 0 {
		return ConditionFrost
	}

	if strings.Contains(lower, "heavy rain") || strings.Contains(lower, "torrential") {
		return ConditionHeavyRain
	}
	if strings.Contains(lower, "rain") || strings.Contains(lower, "shower") ||
		strings.Contains(lower, "drizzle") {
		return ConditionLightRain
	}

	if strings.Contains(lower, "fog") || strings.Contains(lower, "mist") ||
		strings.Contains(lower, "haze") {
		return ConditionFog
	}

	if strings.Contains(lower, "overcast") ||
		(strings.Contains(lower, "cloudy") && !strings.Contains(lower, "partly")) {
		return ConditionMostlyCloudy
	}
	if strings.Contains(lower, "partly cloudy") || strings.Contains(lower, "cloud") {
		return ConditionPartlyCloudy
	}

	if tempC >= 25 {
		return ConditionClearWarm
	}
	return ConditionClearCool
}

// FromSnapshot classifies a snapshot's current conditions.
func FromSnapshot(snap *models.WeatherSnapshot) (WeatherCondition, TimeOfDay) {
	if snap == nil {
		return ConditionClearCool, TimeDay
	}
	return ExtractCondition(snap.Current.Condition.Text, snap.Current.TempC), LocalTimeOfDay(snap.Location)
}

// ConditionWithTime combines a weather condition with time of day for cache keys.
func ConditionWithTime(condition WeatherCondition, tod TimeOfDay) WeatherCondition {
	return WeatherCondition(fmt.Sprintf("%s_%s", condition, tod))
}

// baseStylePrompt defines the consistent visual style for all generated images.
const baseStylePrompt = `Serene watercolor city skyline seen from a distance, generic and unidentifiable.
Low rooftops, a few towers, trees along a river in the foreground.
Style: impressionistic watercolor, soft gradients, muted tones, peaceful and minimal.
Wide composition suitable for the background of a small weather card, calm lower third for text.
No text, no people, no logos, no recognisable landmarks.`

var conditionPrompts = map[WeatherCondition]string{
	ConditionClearWarm:    "Warm temperature, clear sky, no clouds, bright saturated colors.",
	ConditionClearCool:    "Cool temperature, clear sky, no clouds, crisp air feeling.",
	ConditionPartlyCloudy: "Scattered clouds drifting across sky, patches of clear sky visible.",
	ConditionMostlyCloudy: "Overcast, heavy cloud cover, soft diffused light, muted colors.",
	ConditionLightRain:    "Light rain falling, wet glistening streets, grey sky, fresh feeling.",
	ConditionHeavyRain:    "Heavy rain, dark grey clouds, dramatic atmosphere, puddles reflecting light.",
	ConditionStorm:        "Dramatic stormy sky, dark threatening clouds, distant lightning.",
	ConditionFog:          "Fog drifting between buildings, ethereal atmosphere, soft edges.",
	ConditionSnow:         "Snow falling, rooftops and trees covered in white, quiet and still.",
	ConditionHot:          "Very hot, hazy bleached sky, heat shimmer over the rooftops.",
	ConditionFrost:        "Freezing cold, frost on every surface, cold blue tones, bare trees.",
}

var timePrompts = map[TimeOfDay]string{
	TimeDawn:  "Early dawn, soft pink and orange glow on horizon, cool blue shadows.",
	TimeDay:   "Daytime, bright natural light, clear visibility.",
	TimeDusk:  "Sunset, golden hour, warm orange and pink sky, long shadows, lights coming on in windows.",
	TimeNight: "NIGHTTIME SCENE. Dark night sky, no sunlight. Lit windows and street lights. Deep blue-black sky.",
}

// BuildPromptWithTime creates the full image generation prompt including time of day.
func BuildPromptWithTime(condition WeatherCondition, tod TimeOfDay) string {
	conditionDesc, ok := conditionPrompts[condition]
	if !ok {
		conditionDesc = conditionPrompts[ConditionClearCool]
	}
	timeDesc, ok := timePrompts[tod]
	if !ok {
		timeDesc = timePrompts[TimeDay]
	}

	// Put time of day first and emphasize it strongly
	return fmt.Sprintf("%s\n\n%s\n\nWeather conditions: %s", timeDesc, baseStylePrompt, conditionDesc)
}
