package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/internal/kernel"
	outhttp "github.com/shashiranjanraj/offersync/pkg/http"
	"github.com/shashiranjanraj/offersync/pkg/testkit"
)

func TestCatalogFlow(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repositories.NewInstanceGormRepository(db).Create(ctx, &models.Instance{
		AccessToken: "flow-token",
		CreatedAt:   now,
	}))

	k, err := kernel.New(ctx, flowConfig(), db, kernel.WithClock(testkit.NewClock(now)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })

	testkit.RunFlow(t, k.Handler(), "testdata/catalog_flow.json")
}

func TestProductBodyTooLarge(t *testing.T) {
	t.Setenv("MAX_BODY_BYTES", "64")

	k, err := kernel.New(context.Background(), flowConfig(), testkit.NewDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })

	body := `{"name":"Product 1","description":"` + strings.Repeat("x", 128) + `"}`
	for _, tc := range []struct{ method, url string }{
		{http.MethodPost, "/api/products"},
		{http.MethodPatch, "/api/products/1"},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		k.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, tc.method)
		assert.JSONEq(t, `{"status":413,"message":"Request body too large"}`, rec.Body.String(), tc.method)
	}
}

func TestSyncSurvivesClientDisconnect(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()

	inst := &models.Instance{AccessToken: "flow-token", CreatedAt: time.Now()}
	require.NoError(t, repositories.NewInstanceGormRepository(db).Create(ctx, inst))
	product := &models.Product{Name: "Product 1", Active: true, InstanceID: inst.ID}
	require.NoError(t, repositories.NewProductGormRepository(db).Create(ctx, product))

	mt := testkit.NewMockTransport([]testkit.MockStep{{
		HTTPMethod: http.MethodGet,
		MatchURL:   "http://vendor.test/api/v1/products/",
		ReturnData: testkit.MockReturnData{
			StatusCode: http.StatusOK,
			Body:       json.RawMessage(`[{"id":1,"price":1000,"items_in_stock":5}]`),
		},
	}}, true)
	original := outhttp.DefaultClient.Transport
	outhttp.DefaultClient.Transport = mt
	t.Cleanup(func() { outhttp.DefaultClient.Transport = original })

	k, err := kernel.New(ctx, flowConfig(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })

	gone, cancel := context.WithCancel(ctx)
	cancel()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil).WithContext(gone)
	k.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	testkit.AssertAllCalled(t, mt)

	offers, err := repositories.NewOfferGormRepository(db).Query(ctx, repositories.OfferQuery{ProductID: product.ID})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func flowConfig() kernel.Config {
	return kernel.Config{
		UpstreamBaseURL:       "http://vendor.test/api/v1",
		UpstreamTimeout:       time.Second,
		UpstreamRatePerMinute: 6000,
		SyncInterval:          time.Minute,
		SyncPolicy:            services.PolicyAbort,
		SyncWorkers:           1,
		TrendWindow:           5 * time.Minute,
		ListingCacheTTL:       time.Minute,
		HTTPRateLimit:         1000,
	}
}
