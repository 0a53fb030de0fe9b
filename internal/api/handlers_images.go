package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/lox/weatherdash/internal/forecast"
	"github.com/lox/weatherdash/internal/imagegen"
)

// handleCard serves a PNG card for one city. The card is drawn over the
// cached backdrop for the city's current condition, or over a gradient while
// that backdrop is missing (generation is scheduled in the background).
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.city(cityParam(r))
	if !ok {
		http.NotFound(w, r)
		return
	}

	condition, tod := forecast.FromSnapshot(c.WeatherData)
	backdrop, hasBackdrop := s.backdrops.Get(r.Context(), condition, tod)

	key := fmt.Sprintf("%s|%t|%s|%t", c.Name, c.IsPinned, c.Error, hasBackdrop)
	if snap := c.WeatherData; snap != nil {
		key += fmt.Sprintf("|%s|%v|%s", snap.Location.LocalTime, snap.Current.TempC, snap.Current.Condition.Text)
	}
	if data, ok := s.cards.Get(key); ok {
		serveCard(w, data)
		return
	}

	cardData := imagegen.CardDataFromCity(c)
	var (
		data []byte
		err  error
	)
	if hasBackdrop {
		data, err = imagegen.RenderCard(backdrop, cardData)
		if err != nil {
			log.Printf("api: card for %q: backdrop unusable: %v", c.Name, err)
		}
	}
	if data == nil {
		data, err = imagegen.RenderFallbackCard(cardData, condition)
	}
	if err != nil {
		log.Printf("api: card for %q: %v", c.Name, err)
		http.Error(w, "Failed to render card", http.StatusInternalServerError)
		return
	}

	s.cards.Set(key, data)
	serveCard(w, data)
}

func serveCard(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
