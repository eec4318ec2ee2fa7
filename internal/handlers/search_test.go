package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/enchanted/marketplace/internal/models"
	"github.com/enchanted/marketplace/internal/search"
)

func TestSearchUnavailableWithoutElasticsearch(t *testing.T) {
	e := echo.New()

	for _, h := range []*SearchHandler{
		{},
		{Indexer: &search.Indexer{Index: "products"}},
	} {
		rec, c := doJSONRequest(t, e, http.MethodGet, "/products/search?q=bike", nil)
		require.NoError(t, h.Search(c))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	// The client is never dialed before the q check, any address will do.
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{"http://127.0.0.1:9"}})
	require.NoError(t, err)
	h := &SearchHandler{Indexer: &search.Indexer{ES: es, Index: "products"}}
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodGet, "/products/search", nil)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchReturnsHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{"id":3,"title":"old bicycle","price":35,"category":"sports"}}]}}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	h := &SearchHandler{Indexer: &search.Indexer{ES: es, Index: "products"}}
	e := echo.New()

	rec, c := doJSONRequest(t, e, http.MethodGet, "/products/search?q=bicycle", nil)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int64            `json:"total"`
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Products, 1)
	require.Equal(t, "old bicycle", resp.Products[0].Title)
}
