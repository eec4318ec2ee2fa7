package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/enchanted/marketplace/internal/hash"
	"github.com/enchanted/marketplace/internal/models"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func doJSONRequest(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestRegister(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	payload := map[string]string{
		"username": "test_user",
		"password": "password",
		"email":    "test@example.com",
	}
	rec, c := doJSONRequest(t, e, http.MethodPost, "/user/register", payload)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "test_user", resp.User.Username)
	require.Equal(t, "test@example.com", resp.User.Email)
	require.NotEmpty(t, resp.User.ID)

	var stored models.User
	require.NoError(t, db.First(&stored, resp.User.ID).Error)
	require.NotEqual(t, "password", stored.PasswordHash)

	rec_dup, c_dup := doJSONRequest(t, e, http.MethodPost, "/user/register", payload)
	require.NoError(t, h.Register(c_dup))
	require.Equal(t, http.StatusConflict, rec_dup.Code)
}

func TestRegisterMissingFields(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodPost, "/user/register", map[string]string{
		"username": "test_user",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "test@example.com", PasswordHash: pwHash}
	db.Create(&user)

	rec, c := doJSONRequest(t, e, http.MethodPost, "/user/login", map[string]string{
		"username": "test_user",
		"password": "password",
	})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "test_user", resp.User.Username)

	tok, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test_secret"), nil
	})
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	require.Equal(t, float64(user.ID), claims["user_id"])
	require.Equal(t, "test_user", claims["username"])

	rec_bad, c_bad := doJSONRequest(t, e, http.MethodPost, "/user/login", map[string]string{
		"username": "test_user",
		"password": "wrong_password",
	})
	require.NoError(t, h.Login(c_bad))
	require.Equal(t, http.StatusUnauthorized, rec_bad.Code)
}

func TestGetProfile(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "test@example.com", PasswordHash: pwHash}
	db.Create(&user)

	rec, c := doJSONRequest(t, e, http.MethodGet, "/user/profile", nil)
	c.Set("user_id", user.ID)
	require.NoError(t, h.GetProfile(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, user.ID, resp.User.ID)
	require.Equal(t, "test@example.com", resp.User.Email)
}

func TestUpdateProfile(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "old@example.com", PasswordHash: pwHash}
	db.Create(&user)

	rec, c := doJSONRequest(t, e, http.MethodPut, "/user/profile", map[string]string{
		"email": "new@example.com",
	})
	c.Set("user_id", user.ID)
	require.NoError(t, h.UpdateProfile(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.Equal(t, "new@example.com", stored.Email)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	pwHash, _ := hash.HashPassword("password")
	alice := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: pwHash}
	bob := models.User{Username: "bob", Email: "bob@example.com", PasswordHash: pwHash}
	db.Create(&alice)
	db.Create(&bob)

	rec, c := doJSONRequest(t, e, http.MethodPut, "/user/profile", map[string]string{
		"email": "bob@example.com",
	})
	c.Set("user_id", alice.ID)
	require.NoError(t, h.UpdateProfile(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "email already taken", resp.Error)

	var stored models.User
	require.NoError(t, db.First(&stored, alice.ID).Error)
	require.Equal(t, "alice@example.com", stored.Email)
}

func TestUpdateProfileKeepsOwnEmail(t *testing.T) {
	db := InitTestDB(t)
	h := &UserHandler{DB: db, JWTSecret: []byte("test_secret")}
	e := echo.New()

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: pwHash}
	db.Create(&user)

	// Re-submitting the current email is not a conflict.
	rec, c := doJSONRequest(t, e, http.MethodPut, "/user/profile", map[string]string{
		"email": "alice@example.com",
	})
	c.Set("user_id", user.ID)
	require.NoError(t, h.UpdateProfile(c))
	require.Equal(t, http.StatusOK, rec.Code)
}
