package forecast

import (
	"strings"
	"testing"
	"time"

	"github.com/lox/weatherdash/internal/models"
)

func TestExtractCondition(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		tempC float64
		want  WeatherCondition
	}{
		{"hot day overrides text", "Partly cloudy", 38, ConditionHot},
		{"frost overrides text", "Clear", -2, ConditionFrost},
		{"snow beats frost", "Light snow", -4, ConditionSnow},
		{"blizzard", "Blizzard", -10, ConditionSnow},
		{"thunder", "Thundery outbreaks possible", 28, ConditionStorm},
		{"storm beats heat", "Moderate or heavy rain with thunder", 36, ConditionStorm},
		{"heavy rain", "Heavy rain at times", 15, ConditionHeavyRain},
		{"torrential", "Torrential rain shower", 22, ConditionHeavyRain},
		{"patchy rain", "Patchy rain possible", 14, ConditionLightRain},
		{"drizzle", "Light drizzle", 12, ConditionLightRain},
		{"showers", "Light rain shower", 18, ConditionLightRain},
		{"fog", "Fog", 8, ConditionFog},
		{"freezing fog stays fog above zero", "Freezing fog", 1, ConditionFog},
		{"mist", "Mist", 10, ConditionFog},
		{"overcast", "Overcast", 12, ConditionMostlyCloudy},
		{"cloudy", "Cloudy", 16, ConditionMostlyCloudy},
		{"partly cloudy", "Partly cloudy", 26, ConditionPartlyCloudy},
		{"sunny warm", "Sunny", 28, ConditionClearWarm},
		{"clear cool", "Clear", 14, ConditionClearCool},
		{"case insensitive", "PARTLY CLOUDY", 20, ConditionPartlyCloudy},
		{"empty text", "", 20, ConditionClearCool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCondition(tt.text, tt.tempC)
			if got != tt.want {
				t.Errorf("ExtractCondition(%q, %v) = %v, want %v", tt.text, tt.tempC, got, tt.want)
			}
		})
	}
}

func TestGetTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{0, TimeNight},
		{5, TimeDawn},
		{6, TimeDawn},
		{7, TimeDay},
		{16, TimeDay},
		{17, TimeDusk},
		{19, TimeDusk},
		{20, TimeNight},
		{23, TimeNight},
	}
	for _, tt := range tests {
		got := GetTimeOfDay(time.Date(2025, 1, 1, tt.hour, 30, 0, 0, time.UTC))
		if got != tt.want {
			t.Errorf("GetTimeOfDay(%02d:30) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestLocalTimeOfDay(t *testing.T) {
	tests := []struct {
		localtime string
		want      TimeOfDay
	}{
		{"2025-06-01 21:15", TimeNight},
		{"2025-06-01 6:05", TimeDawn},
		{"2025-06-01 12:00", TimeDay},
		{"", TimeDay},
		{"not a time", TimeDay},
	}
	for _, tt := range tests {
		got := LocalTimeOfDay(models.Location{LocalTime: tt.localtime})
		if got != tt.want {
			t.Errorf("LocalTimeOfDay(%q) = %v, want %v", tt.localtime, got, tt.want)
		}
	}
}

func TestFromSnapshot(t *testing.T) {
	cond, tod := FromSnapshot(nil)
	if cond != ConditionClearCool || tod != TimeDay {
		t.Errorf("FromSnapshot(nil) = %v, %v", cond, tod)
	}

	snap := &models.WeatherSnapshot{
		Location: models.Location{Name: "London", LocalTime: "2025-11-03 18:40"},
		Current:  models.Current{TempC: 9, Condition: models.Condition{Text: "Light rain"}},
	}
	cond, tod = FromSnapshot(snap)
	if cond != ConditionLightRain || tod != TimeDusk {
		t.Errorf("FromSnapshot = %v, %v, want light_rain, dusk", cond, tod)
	}
	if key := ConditionWithTime(cond, tod); key != "light_rain_dusk" {
		t.Errorf("ConditionWithTime = %q", key)
	}
}

func TestBuildPromptWithTime_EveryCondition(t *testing.T) {
	for c, desc := range conditionPrompts {
		prompt := BuildPromptWithTime(c, TimeDay)
		if len(prompt) < 100 {
			t.Errorf("BuildPromptWithTime(%s) returned unexpectedly short prompt", c)
		}
		if !strings.Contains(prompt, desc) {
			t.Errorf("BuildPromptWithTime(%s) missing condition description", c)
		}
	}
}

func TestBuildPromptWithTime(t *testing.T) {
	prompt := BuildPromptWithTime(ConditionFog, TimeNight)
	if !strings.HasPrefix(prompt, "NIGHTTIME SCENE.") {
		t.Errorf("night prompt should lead with the lighting, got %q", prompt[:40])
	}

	// Unknown values fall back rather than producing an empty section.
	prompt = BuildPromptWithTime("volcanic", "eclipse")
	if !strings.Contains(prompt, conditionPrompts[ConditionClearCool]) ||
		!strings.HasPrefix(prompt, timePrompts[TimeDay]) {
		t.Errorf("fallback prompt = %q", prompt)
	}
}
