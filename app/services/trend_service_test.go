package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/services"
)

func TestWindow(t *testing.T) {
	f := newFixture(t)

	start, end := f.trend.Window(services.TimeRange{})
	assert.True(t, end.Equal(epoch))
	assert.True(t, start.Equal(epoch.Add(-5*time.Minute)))

	given := epoch.Add(-time.Hour)
	start, end = f.trend.Window(services.TimeRange{Start: given})
	assert.True(t, start.Equal(given))
	assert.True(t, end.Equal(epoch))

	start, end = f.trend.Window(services.TimeRange{Start: epoch, End: given})
	assert.True(t, start.Equal(given), "reversed bounds are swapped")
	assert.True(t, end.Equal(epoch))

	start, end = f.trend.Window(services.TimeRange{End: given})
	assert.True(t, start.Equal(given), "default start stays anchored on now, then the swap applies")
	assert.True(t, end.Equal(epoch.Add(-5*time.Minute)))

	later := epoch.Add(time.Hour)
	start, end = f.trend.Window(services.TimeRange{End: later})
	assert.True(t, start.Equal(epoch.Add(-5*time.Minute)))
	assert.True(t, end.Equal(later))
}

func TestPriceTrend_GroupsByInstant(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()
	id := f.register(t, "Product 1")

	t1 := epoch.Add(-4 * time.Minute)
	t2 := epoch.Add(-3 * time.Minute)
	t3 := epoch.Add(-2 * time.Minute)
	f.seedOffers(t, id, t1, models.OfferHistoric, [2]int64{1000, 5}, [2]int64{900, 0}, [2]int64{950, 2})
	f.seedOffers(t, id, t2, models.OfferHistoric, [2]int64{500, 0})
	f.seedOffers(t, id, t3, models.OfferActive, [2]int64{1200, 1})
	f.seedOffers(t, id, epoch.Add(-time.Hour), models.OfferHistoric, [2]int64{1, 1})

	points, err := f.trend.PriceTrend(ctx, id, services.TimeRange{})
	require.NoError(t, err)
	require.Len(t, points, 2, "instants without stock are omitted")

	assert.Equal(t, int64(950), points[0].Price)
	assert.True(t, points[0].AcquiredOn.Equal(t1))
	assert.Equal(t, int64(1200), points[1].Price)
	assert.True(t, points[1].AcquiredOn.Equal(t3))
}

func TestPriceTrend_UnknownOrInactive(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	_, err := f.trend.PriceTrend(ctx, 42, services.TimeRange{})
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	id := f.register(t, "Product 1")
	require.NoError(t, f.catalog.Deactivate(ctx, id))
	_, err = f.trend.History(ctx, id, services.TimeRange{})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}

func TestHistory_RiseOrFall(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()
	id := f.register(t, "Product 1")

	h, err := f.trend.History(ctx, id, services.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, h.Points)
	assert.Nil(t, h.RiseOrFall)

	f.seedOffers(t, id, epoch.Add(-3*time.Minute), models.OfferHistoric, [2]int64{100, 1})
	h, err = f.trend.History(ctx, id, services.TimeRange{})
	require.NoError(t, err)
	require.NotNil(t, h.RiseOrFall)
	assert.Equal(t, 0.0, *h.RiseOrFall)

	f.seedOffers(t, id, epoch.Add(-2*time.Minute), models.OfferActive, [2]int64{20, 1})
	h, err = f.trend.History(ctx, id, services.TimeRange{})
	require.NoError(t, err)
	require.NotNil(t, h.RiseOrFall)
	assert.InDelta(t, -80.0, *h.RiseOrFall, 1e-9)
}

func TestRiseOrFall(t *testing.T) {
	point := func(price int64) services.PricePoint { return services.PricePoint{Price: price} }

	tests := []struct {
		name   string
		points []services.PricePoint
		want   *float64
	}{
		{"empty", nil, nil},
		{"single", []services.PricePoint{point(5)}, floatPtr(0)},
		{"fall", []services.PricePoint{point(100), point(20)}, floatPtr(-80)},
		{"rise", []services.PricePoint{point(1), point(7), point(2)}, floatPtr(100)},
		{"zero first price", []services.PricePoint{point(0), point(10)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.RiseOrFall(tt.points)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
