package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// responseWriter wraps http.ResponseWriter to capture status code & size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(data)
	rw.size += size
	return size, err
}

// requestLoggingMiddleware logs HTTP requests (if enabled) with latency & size.
func (ps *ProjectServer) requestLoggingMiddleware(next http.Handler) http.Handler {
	if !ps.config.Logging.RequestLogging {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     200, // Default status code
		}

		next.ServeHTTP(rw, r)

		if r.URL.Path == "/health" {
			return
		}

		ps.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   rw.statusCode,
			"size":     rw.size,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Info("Request handled")
	})
}

// corsMiddleware injects CORS headers if enabled in configuration and
// answers preflight requests so browser clients can hit the edit endpoints.
func (ps *ProjectServer) corsMiddleware(next http.Handler) http.Handler {
	if !ps.config.Server.EnableCORS {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// panicRecoveryMiddleware intercepts panics returning HTTP 500 without crashing the process.
func (ps *ProjectServer) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				ps.logger.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  err,
				}).Error("Panic recovered in request handler")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sessionStore holds bearer tokens issued by the login endpoint. The
// server is single-user so a token carries no identity, only validity.
type sessionStore struct {
	mutex    sync.RWMutex
	tokens   map[string]time.Time
	lifetime time.Duration
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		tokens:   make(map[string]time.Time),
		lifetime: 24 * time.Hour,
	}
}

// Issue mints a fresh session token.
func (s *sessionStore) Issue() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	s.mutex.Lock()
	s.tokens[token] = time.Now().Add(s.lifetime)
	s.mutex.Unlock()
	return token, nil
}

// Valid reports whether the token exists and has not expired.
func (s *sessionStore) Valid(token string) bool {
	s.mutex.RLock()
	expiry, exists := s.tokens[token]
	s.mutex.RUnlock()

	if !exists {
		return false
	}
	if time.Now().After(expiry) {
		s.mutex.Lock()
		delete(s.tokens, token)
		s.mutex.Unlock()
		return false
	}
	return true
}

// authMiddleware requires a valid session token on every API request when
// access protection is enabled. Health checks and the login endpoint stay
// open so clients can obtain a session.
func (ps *ProjectServer) authMiddleware(next http.Handler) http.Handler {
	if !ps.config.Auth.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/api/auth/login" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" || !ps.sessions.Valid(token) {
			ps.respondWithError(w, r, http.StatusUnauthorized, "Authentication required", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}

// handleLogin exchanges the access password for a session token.
func (ps *ProjectServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	if !ps.config.Auth.Enabled {
		ps.respondWithError(w, r, http.StatusNotFound, "Access protection is not enabled", nil)
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		ps.respondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ps.config.Auth.PasswordHash), []byte(body.Password)); err != nil {
		ps.respondWithError(w, r, http.StatusUnauthorized, "Invalid password", nil)
		return
	}

	token, err := ps.sessions.Issue()
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not create session", err)
		return
	}

	ps.respondJSON(w, map[string]interface{}{
		"success": true,
		"token":   token,
	})
}
