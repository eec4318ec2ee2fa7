package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/enchanted/marketplace/internal/events"
	"github.com/enchanted/marketplace/internal/logging"
	"github.com/enchanted/marketplace/internal/models"
	"github.com/enchanted/marketplace/internal/search"
	"github.com/enchanted/marketplace/internal/util"
)

var allowedImageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type ProductHandler struct {
	DB         *gorm.DB
	Producer   *events.Producer
	Indexer    *search.Indexer
	UploadPath string
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["product_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *ProductHandler) index(c echo.Context, p *models.Product) {
	if err := h.Indexer.IndexProduct(c.Request().Context(), p); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_index_error", "product_id", p.ID, "error", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	offset, page, limit := util.Clamp(
		parseIntDefault(c.QueryParam("page"), 1),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)
	category := c.QueryParam("category")

	query := h.DB.Model(&models.Product{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot count products"})
	}

	products := []models.Product{}
	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&products).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot fetch products"})
	}

	return c.JSON(http.StatusOK, models.ProductList{
		Products: products,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

func (h *ProductHandler) GetMyProducts(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	offset, page, limit := util.Clamp(
		parseIntDefault(c.QueryParam("page"), 1),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)

	var total int64
	if err := h.DB.Model(&models.Product{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot count products"})
	}

	products := []models.Product{}
	if err := h.DB.Where("user_id = ?", userID).Offset(offset).Limit(limit).
		Order("created_at DESC").Find(&products).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot fetch products"})
	}

	return c.JSON(http.StatusOK, models.ProductList{
		Products: products,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_create")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	var req models.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" || req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and a positive price are required"})
	}
	if !models.ValidCategory(req.Category) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	product := models.Product{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		l.Error("create_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot create product"})
	}

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":       "product_created",
		"product_id": product.ID,
		"user_id":    userID,
		"title":      product.Title,
	})

	l.Info("create_success", "product_id", product.ID, "user_id", userID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "product created",
		"product": product,
	})
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_update")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&product).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found or not yours"})
	}

	var req models.UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Price > 0 {
		updates["price"] = req.Price
	}
	if req.Category != "" {
		if !models.ValidCategory(req.Category) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		updates["category"] = req.Category
	}

	if err := h.DB.Model(&product).Updates(updates).Error; err != nil {
		l.Error("update_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot update product"})
	}
	h.DB.First(&product, product.ID)

	h.index(c, &product)
	h.publish(c, map[string]any{
		"type":       "product_updated",
		"product_id": product.ID,
		"user_id":    userID,
		"title":      product.Title,
	})

	l.Info("update_success", "product_id", product.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "product updated",
		"product": product,
	})
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_delete")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&product).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found or not yours"})
	}

	if product.ImageURL != "" {
		imagePath := filepath.Join(h.UploadPath, filepath.Base(product.ImageURL))
		if err := os.Remove(imagePath); err != nil {
			l.Warn("image_remove_failed", "path", imagePath, "error", err)
		}
	}

	if err := h.DB.Delete(&product).Error; err != nil {
		l.Error("delete_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot delete product"})
	}

	if err := h.Indexer.DeleteProduct(ctx, product.ID); err != nil {
		l.Error("es_delete_error", "product_id", product.ID, "error", err)
	}
	h.publish(c, map[string]any{
		"type":       "product_deleted",
		"product_id": product.ID,
		"user_id":    userID,
	})

	l.Info("delete_success", "product_id", product.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

func (h *ProductHandler) UploadProductImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_upload_image")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&product).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found or not yours"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "image file required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	allowed := false
	for _, e := range allowedImageExts {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported image format"})
	}

	if err := os.MkdirAll(h.UploadPath, 0o755); err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot create upload dir"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot read image"})
	}
	defer src.Close()

	fileName := fmt.Sprintf("%d_%s%s", product.ID, uuid.New().String(), ext)
	dst, err := os.Create(filepath.Join(h.UploadPath, fileName))
	if err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot save image"})
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot save image"})
	}

	imageURL := "/uploads/" + fileName
	if err := h.DB.Model(&product).Update("image_url", imageURL).Error; err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cannot update image url"})
	}
	product.ImageURL = imageURL
	h.index(c, &product)

	l.Info("upload_success", "product_id", product.ID, "file", fileName)
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "image uploaded",
		"image_url": imageURL,
		"product":   product,
	})
}
