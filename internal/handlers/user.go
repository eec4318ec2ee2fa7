package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/enchanted/marketplace/internal/events"
	"github.com/enchanted/marketplace/internal/hash"
	"github.com/enchanted/marketplace/internal/logging"
	"github.com/enchanted/marketplace/internal/models"
)

const tokenTTL = 24 * time.Hour

type UserHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *events.Producer
}

func (h *UserHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		l.Warn("register_error", "status", 400, "reason", "missing_fields")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, password and email are required"})
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot hash the password"})
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Warn("register_failed", "status", 409, "reason", "user_exists", "error", err)
		return c.JSON(http.StatusConflict, echo.Map{"error": "username or email already taken"})
	}

	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("register_success", "status", 201, "user_id", user.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user created",
		"user":    user,
	})
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
	}

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot create token"})
	}

	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, models.LoginResponse{Token: signed, User: user})
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_profile")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_profile_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	if req.Email != "" && req.Email != user.Email {
		var other models.User
		err := h.DB.Where("email = ? AND id <> ?", req.Email, userID).First(&other).Error
		if err == nil {
			l.Warn("update_profile_failed", "status", 409, "reason", "email_taken")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already taken"})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("update_profile_failed", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot update profile"})
		}
		user.Email = req.Email
	}
	if err := h.DB.Save(&user).Error; err != nil {
		l.Error("update_profile_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot update profile"})
	}

	l.Info("update_profile_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated",
		"user":    user,
	})
}
