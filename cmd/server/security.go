// internal/security/security.go - Security related functionalities.
//
// This file implements device authentication for the update routes and the
// TLS configuration of the listener.
package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

// DeviceAuthService authenticates devices by bearer token.
// With no tokens configured every request is accepted.
type DeviceAuthService struct {
	tokenHashes [][sha256.Size]byte
	logger      *log.Logger
}

// NewDeviceAuthService creates a new DeviceAuthService instance.
func NewDeviceAuthService(tokens []string, logger *log.Logger) *DeviceAuthService {
	as := &DeviceAuthService{logger: logger}
	for _, token := range tokens {
		as.tokenHashes = append(as.tokenHashes, sha256.Sum256([]byte(token)))
	}
	return as
}

// Enabled reports whether token authentication is enforced.
func (as *DeviceAuthService) Enabled() bool {
	return len(as.tokenHashes) > 0
}

// DeviceTokenMiddleware is middleware for bearer token authentication via header.
func (as *DeviceAuthService) DeviceTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !as.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := extractAPIKeyFromHeader(r)
		if token == "" {
			respondUnauthorized(w, "Device token required in Authorization header")
			return
		}

		fingerprint, ok := as.validateToken(token)
		if !ok {
			as.logger.Printf("Rejected device token from %s", r.RemoteAddr)
			respondUnauthorized(w, "Invalid device token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyDevice, fingerprint)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken compares the token against every configured token in constant time.
// It returns a short fingerprint of the token for logging.
func (as *DeviceAuthService) validateToken(token string) (string, bool) {
	sum := sha256.Sum256([]byte(token))
	matched := 0
	for _, h := range as.tokenHashes {
		matched |= subtle.ConstantTimeCompare(sum[:], h[:])
	}
	return hex.EncodeToString(sum[:4]), matched == 1
}

// extractAPIKeyFromHeader extracts the token from the Authorization header (Bearer token).
func extractAPIKeyFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, "Bearer ")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) != "" {
		return "" // Invalid format
	}

	return strings.TrimSpace(parts[1])
}

// Context keys for storing request information in request context.
type contextKey string

// ContextKeyDevice is the key for the authenticated device token fingerprint.
var ContextKeyDevice contextKey = "device"

// ContextKeyRequestID is the key for the request id assigned by the request logger.
var ContextKeyRequestID contextKey = "request_id"

// GetDeviceFromContext retrieves the device token fingerprint from the request context.
func GetDeviceFromContext(ctx context.Context) (string, bool) {
	device, ok := ctx.Value(ContextKeyDevice).(string)
	return device, ok
}

// GetRequestIDFromContext retrieves the request id from the request context.
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyRequestID).(string)
	return id, ok
}

// NewTLSConfig builds the listener TLS configuration.
// When clientCAPath is set, devices must present a certificate signed by one of its CAs.
func NewTLSConfig(clientCAPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if clientCAPath == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(clientCAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA bundle: %s", clientCAPath)
	}
	tlsConfig.ClientCAs = pool
	tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsConfig, nil
}

// --- Response helper functions ---

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="Firmware Update API"`)
	respondErrorWithStatus(w, http.StatusUnauthorized, message)
}

func respondErrorWithStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response, _ := json.Marshal(map[string]string{"error": message})
	w.Write(response)
}
