package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type ctxKey string

const (
	AdminIDKey ctxKey = "adminID"
	TokenKey   ctxKey = "token"
)

// JWTMiddleware verifies an HMAC-signed bearer token and stores the admin id
// (the "sub" claim, or "id" as fallback) and the raw token in the context.
// Websocket clients may pass the token as ?token= instead of the header.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				log.Printf("[AUTH] JWT secret is empty")
				http.Error(w, "Missing JWT secret", http.StatusInternalServerError)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			adminID, err := parseAdminID(raw, key)
			if err != nil {
				log.Printf("[AUTH] %s %s rejected: %v", r.Method, r.URL.Path, err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
			ctx = context.WithValue(ctx, TokenKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func parseAdminID(raw string, key []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}

	for _, name := range []string{"sub", "id"} {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", errors.New("token has no subject")
}

func GetAdminID(ctx context.Context) (string, error) {
	adminID, ok := ctx.Value(AdminIDKey).(string)
	if !ok || adminID == "" {
		return "", errors.New("adminID not found in context")
	}
	return adminID, nil
}

// GetToken returns the raw bearer token, forwarded to the cleanup function.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// WithAdmin returns ctx carrying an authenticated admin, as the middleware does.
func WithAdmin(ctx context.Context, adminID, token string) context.Context {
	ctx = context.WithValue(ctx, AdminIDKey, adminID)
	return context.WithValue(ctx, TokenKey, token)
}
