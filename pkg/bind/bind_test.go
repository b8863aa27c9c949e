package bind_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/pkg/bind"
	"github.com/shashiranjanraj/offersync/pkg/validate"
)

type storeProduct struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

func request(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
}

func TestJSON(t *testing.T) {
	w, r := request(`{"name":"Product 1","description":"first"}`)
	var in storeProduct
	errs, err := bind.JSON(w, r, &in)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, "Product 1", in.Name)
}

func TestJSON_Validation(t *testing.T) {
	w, r := request(`{"name":"  "}`)
	errs, err := bind.JSON(w, r, &storeProduct{})
	require.NoError(t, err)
	assert.Equal(t, validate.Errors{"name": "is required"}, errs)
}

func TestJSON_Malformed(t *testing.T) {
	w, r := request(`["not", "an", "object"]`)
	_, err := bind.JSON(w, r, &storeProduct{})
	assert.ErrorIs(t, err, bind.ErrMalformed)
}

func TestJSONLimit_TooLarge(t *testing.T) {
	w, r := request(`{"name":"` + strings.Repeat("x", 64) + `"}`)
	_, err := bind.JSONLimit(w, r, &storeProduct{}, 16)
	assert.ErrorIs(t, err, bind.ErrTooLarge)
}
