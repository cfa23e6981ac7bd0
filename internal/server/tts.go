package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/leonardotrapani/copresenter/internal/playback"
)

func (s *Server) handleTTS(c echo.Context) error {
	if s.tts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "speech synthesis is not configured")
	}
	text := c.QueryParam("text")
	audio, err := s.tts.Fetch(c.Request().Context(), text, c.QueryParam("voiceId"))
	if err != nil {
		if errors.Is(err, playback.ErrEmptyUnit) {
			return echo.NewHTTPError(http.StatusBadRequest, "text is required")
		}
		var se *playback.StatusError
		if errors.As(err, &se) {
			log.Printf("Server: tts upstream status %d", se.Status)
			return echo.NewHTTPError(http.StatusBadGateway, se.Error())
		}
		log.Printf("Server: tts: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "speech synthesis failed")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}
