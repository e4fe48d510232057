// Package middleware содержит HTTP middleware витрины: авторизацию, сжатие и журнал запросов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const customerIDKey contextKey = "customerID"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку аутентификации покупателя по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет идентификатор покупателя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		customerID, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), customerID)))
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного покупателя.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, customerID string) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(customerID),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// ClearAuthCookie удаляет cookie авторизации.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) sign(customerID string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(customerID))
	return customerID + "." + hex.EncodeToString(mac.Sum(nil))
}

// parseCookie проверяет подпись. Идентификатор покупателя (UUID) не содержит точек,
// поэтому подпись отделяется по последней точке.
func (a *AuthMiddleware) parseCookie(cookieValue string) (string, bool) {
	i := strings.LastIndex(cookieValue, ".")
	if i <= 0 || i == len(cookieValue)-1 {
		return "", false
	}

	customerID := cookieValue[:i]
	expected := a.sign(customerID)

	if !hmac.Equal([]byte(cookieValue), []byte(expected)) {
		return "", false
	}

	return customerID, true
}

// GetCustomerIDFromContext извлекает идентификатор покупателя из контекста запроса.
func GetCustomerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(customerIDKey).(string)
	return id, ok && id != ""
}

// WithCustomerID кладёт идентификатор покупателя в контекст.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerIDKey, customerID)
}
