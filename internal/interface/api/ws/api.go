package ws

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"titleCountdown/internal/domain"
)

type loginResponse struct {
	URL         string `json:"url"`
	RedirectURI string `json:"redirect_uri"`
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}

	if err := s.ctrl.ApplySettings(settings); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid settings", "fields": verrs})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.ctrl.Login(r.Context())
	switch {
	case errors.Is(err, domain.ErrAuthInProgress):
		writeError(w, http.StatusConflict, "authentication already in progress, check your browser")
		return
	case errors.Is(err, domain.ErrFeatureDisabled):
		writeError(w, http.StatusServiceUnavailable, "title updates are disabled, check config.json")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, loginResponse{URL: attempt.AuthURL, RedirectURI: attempt.RedirectURI})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("X-Title-Countdown-Error", msg)
	writeJSON(w, status, map[string]string{"error": msg})
}

type LoggingResponseWriter struct {
	w          http.ResponseWriter
	statusCode int
	bytes      int
}

func (lrw *LoggingResponseWriter) Header() http.Header {
	return lrw.w.Header()
}

func (lrw *LoggingResponseWriter) Write(bb []byte) (int, error) {
	if lrw.statusCode == 0 {
		lrw.statusCode = http.StatusOK
	}
	wb, err := lrw.w.Write(bb)
	lrw.bytes += wb
	return wb, err
}

func (lrw *LoggingResponseWriter) WriteHeader(statusCode int) {
	lrw.w.WriteHeader(statusCode)
	lrw.statusCode = statusCode
}

// Hijack lets the websocket upgrade through the middleware.
func (lrw *LoggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.w.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("ws: %T does not support hijacking", lrw.w)
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.RequestURI == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		lrw := &LoggingResponseWriter{w: w}
		next.ServeHTTP(lrw, r)

		fields := []zap.Field{
			zap.Int64("duration", time.Since(start).Milliseconds()),
			zap.String("method", r.Method),
			zap.String("remote#addr", r.RemoteAddr),
			zap.Int("response#bytes", lrw.bytes),
			zap.Int("status", lrw.statusCode),
			zap.String("uri", r.RequestURI),
		}

		if lrw.statusCode < http.StatusBadRequest {
			s.logger.Info("http request", fields...)
		} else {
			s.logger.Error("http request", append(fields, zap.String("error", lrw.Header().Get("X-Title-Countdown-Error")))...)
		}
	})
}
