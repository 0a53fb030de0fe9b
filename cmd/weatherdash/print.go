package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lox/weatherdash/internal/dashboard"
)

func printCities(w io.Writer, dash *dashboard.Dashboard) {
	cities := dash.Cities()
	if len(cities) == 0 {
		fmt.Fprintln(w, "Add a city to get started!")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range cities {
		pin := ""
		if c.IsPinned {
			pin = "*"
		}
		weather := "-"
		if snap := c.WeatherData; snap != nil {
			weather = fmt.Sprintf("%.0f°C %s", snap.Current.TempC, snap.Current.Condition.Text)
		}
		status := ""
		if c.HasError() {
			status = "error: " + c.Error
		}
		fmt.Fprintf(tw, "%d.\t%s%s\t%s\t%s\n", i+1, c.Name, pin, weather, status)
	}
	tw.Flush()
}
