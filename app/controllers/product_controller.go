package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/pkg/bind"
	"github.com/shashiranjanraj/offersync/pkg/response"
)

type ProductController struct {
	catalog *services.CatalogService
	trend   *services.TrendAnalyzer
}

func NewProductController(catalog *services.CatalogService, trend *services.TrendAnalyzer) *ProductController {
	return &ProductController{catalog: catalog, trend: trend}
}

type storeProductRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type updateProductRequest struct {
	Name        *string `json:"name" validate:"nullable,required,max=255"`
	Description *string `json:"description"`
}

type productResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Store handles POST /api/products.
func (c *ProductController) Store(w http.ResponseWriter, r *http.Request) {
	var body storeProductRequest
	if !decode(w, r, &body) {
		return
	}

	id, err := c.catalog.Register(r.Context(), services.RegisterInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, map[string]uint{"id": id})
}

// Index handles GET /api/products.
func (c *ProductController) Index(w http.ResponseWriter, r *http.Request) {
	products, err := c.catalog.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, products)
}

// Update handles PATCH /api/products/{id}.
func (c *ProductController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var body updateProductRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Name == nil && body.Description == nil {
		response.ValidationError(w, map[string]string{"body": "name or description is required"})
		return
	}

	p, err := c.catalog.Rename(r.Context(), id, services.RenameInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, productResponse{ID: p.ID, Name: p.Name, Description: p.Description})
}

// Destroy handles DELETE /api/products/{id}.
func (c *ProductController) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := c.catalog.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, "Product deleted")
}

// History handles GET /api/products/{id}/history?start=&end=.
func (c *ProductController) History(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	errs := map[string]string{}
	window := services.TimeRange{
		Start: parseTime(errs, r, "start"),
		End:   parseTime(errs, r, "end"),
	}
	if len(errs) > 0 {
		response.ValidationError(w, errs)
		return
	}

	h, err := c.trend.History(r.Context(), id, window)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(h.Points) == 0 {
		response.Success(w, []services.PricePoint{})
		return
	}
	response.Success(w, h)
}

// decode binds the JSON body into dest. ok is false after an error
// response has been written.
func decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	errs, err := bind.JSON(w, r, dest)
	switch {
	case errors.Is(err, bind.ErrTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	case err != nil:
		response.ValidationError(w, map[string]string{"body": "must be a JSON object"})
		return false
	case len(errs) > 0:
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func parseTime(errs map[string]string, r *http.Request, key string) time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		errs[key] = "must be an RFC 3339 timestamp"
		return time.Time{}
	}
	return t
}
