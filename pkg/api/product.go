package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/enchanted/marketplace/pkg/session"
)

type Product struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductList struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

type CreateProductInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

type UpdateProductInput struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Category    string  `json:"category,omitempty"`
}

type SearchResult struct {
	Total    int64     `json:"total"`
	Products []Product `json:"products"`
}

// ProductService covers listing CRUD and image upload.
type ProductService struct {
	client *Client
}

func NewProductService(baseURL string, store *session.Store) *ProductService {
	return &ProductService{client: newClient(baseURL, store)}
}

func (s *ProductService) GetProducts(ctx context.Context) (*ProductList, error) {
	var resp ProductList
	if err := s.client.do(ctx, "GET", "/products", nil, &resp, "fetching products failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *ProductService) GetMyProducts(ctx context.Context) (*ProductList, error) {
	var resp ProductList
	if err := s.client.do(ctx, "GET", "/my-products", nil, &resp, "fetching your products failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	var resp struct {
		Message string  `json:"message"`
		Product Product `json:"product"`
	}
	if err := s.client.do(ctx, "POST", "/products", in, &resp, "creating product failed"); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uint, in UpdateProductInput) (*Product, error) {
	var resp struct {
		Message string  `json:"message"`
		Product Product `json:"product"`
	}
	path := fmt.Sprintf("/products/%d", id)
	if err := s.client.do(ctx, "PUT", path, in, &resp, "updating product failed"); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	path := fmt.Sprintf("/products/%d", id)
	return s.client.do(ctx, "DELETE", path, nil, nil, "deleting product failed")
}

// UploadProductImage attaches an image to an existing product. Callers
// creating a listing treat a failure here as a soft one: the product
// already persists.
func (s *ProductService) UploadProductImage(ctx context.Context, id uint, filename string, file io.Reader) (*Product, error) {
	var resp struct {
		Message  string  `json:"message"`
		ImageURL string  `json:"image_url"`
		Product  Product `json:"product"`
	}
	path := fmt.Sprintf("/products/%d/image", id)
	if err := s.client.doMultipart(ctx, "POST", path, "image", filename, file, &resp, "uploading image failed"); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (s *ProductService) Search(ctx context.Context, query string) (*SearchResult, error) {
	var resp SearchResult
	path := "/products/search?q=" + url.QueryEscape(query)
	if err := s.client.do(ctx, "GET", path, nil, &resp, "search failed"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImageURL resolves a stored filename against the service base URL.
func (s *ProductService) ImageURL(filename string) string {
	return s.client.BaseURL() + "/uploads/" + filename
}

func (s *ProductService) HealthCheck(ctx context.Context) (*Health, error) {
	var resp Health
	if err := s.client.do(ctx, "GET", "/health", nil, &resp, "service unreachable"); err != nil {
		return nil, err
	}
	return &resp, nil
}
