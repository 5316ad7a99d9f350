package fakeworker

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type userKey struct{}

// authMiddleware проверяет Bearer-токен и кладёт пользователя в контекст запроса.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			s.logger.Debugf("missing or malformed Authorization header")
			writeJSON(w, http.StatusUnauthorized, resultDTO{OK: false, Error: "unauthorized"})
			return
		}
		user, ok := s.lookup(strings.TrimSpace(parts[1]))
		if !ok {
			s.logger.Debugf("unknown token")
			writeJSON(w, http.StatusUnauthorized, resultDTO{OK: false, Error: "unauthorized"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}

// loggingMiddleware пишет метод, путь, статус и длительность запроса.
func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)
		s.logger.Infof("request: %s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	}
}

// responseWriter запоминает код ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func userFrom(r *http.Request) User {
	user, _ := r.Context().Value(userKey{}).(User)
	return user
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
