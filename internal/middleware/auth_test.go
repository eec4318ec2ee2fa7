package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := BearerAuth([]byte("test_secret"))
	handler := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id")})
	})
	return rec, handler(c)
}

func TestBearerAuthValidToken(t *testing.T) {
	token := signToken(t, []byte("test_secret"), jwt.MapClaims{
		"user_id":  float64(7),
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	rec, err := runAuth(t, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuthMissingHeader(t *testing.T) {
	rec, err := runAuth(t, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuthExpiredToken(t *testing.T) {
	token := signToken(t, []byte("test_secret"), jwt.MapClaims{
		"user_id": float64(7),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	rec, err := runAuth(t, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuthWrongSecret(t *testing.T) {
	token := signToken(t, []byte("other_secret"), jwt.MapClaims{
		"user_id": float64(7),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	rec, err := runAuth(t, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
