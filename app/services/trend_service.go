package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/offersync/app/repositories"
)

// DefaultTrendWindow is used when no window is configured.
const DefaultTrendWindow = 5 * time.Minute

// TimeRange bounds a trend query. Zero values mean "not given".
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// PricePoint is the best in-stock price at one acquisition instant.
type PricePoint struct {
	Price      int64     `json:"price"`
	AcquiredOn time.Time `json:"acquired_on"`
}

// History is a price trend with its overall percentage change. RiseOrFall
// is nil when the first price is zero.
type History struct {
	Points     []PricePoint `json:"history"`
	RiseOrFall *float64     `json:"rise_or_fall"`
}

// TrendAnalyzer reads the offer history of active products.
type TrendAnalyzer struct {
	products repositories.ProductRepository
	offers   repositories.HistoryStore
	clock    Clock
	window   time.Duration
}

func NewTrendAnalyzer(products repositories.ProductRepository, offers repositories.HistoryStore, clock Clock, window time.Duration) *TrendAnalyzer {
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultTrendWindow
	}
	return &TrendAnalyzer{products: products, offers: offers, clock: clock, window: window}
}

// Window resolves the effective bounds: end defaults to now, start to now
// minus the default window, and reversed bounds are swapped. A given end
// does not move the default start.
func (a *TrendAnalyzer) Window(r TimeRange) (time.Time, time.Time) {
	now := a.clock.Now()
	end := r.End
	if end.IsZero() {
		end = now
	}
	start := r.Start
	if start.IsZero() {
		start = now.Add(-a.window)
	}
	if start.After(end) {
		start, end = end, start
	}
	return start.UTC(), end.UTC()
}

// PriceTrend returns, for every acquisition instant in the window that has
// at least one offer in stock, the lowest in-stock price. Points are in
// ascending time order.
func (a *TrendAnalyzer) PriceTrend(ctx context.Context, productID uint, r TimeRange) ([]PricePoint, error) {
	p, err := a.products.FindByID(ctx, productID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !p.Active) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("trend: load product %d: %w", productID, err)
	}

	start, end := a.Window(r)
	offers, err := a.offers.Query(ctx, repositories.OfferQuery{
		ProductID:   productID,
		From:        start,
		To:          end,
		InStockOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("trend: query offers for product %d: %w", productID, err)
	}

	points := make([]PricePoint, 0)
	index := make(map[int64]int, len(offers))
	for _, o := range offers {
		key := o.AcquiredOn.UnixNano()
		if i, ok := index[key]; ok {
			if o.Price < points[i].Price {
				points[i].Price = o.Price
			}
			continue
		}
		index[key] = len(points)
		points = append(points, PricePoint{Price: o.Price, AcquiredOn: o.AcquiredOn.UTC()})
	}
	return points, nil
}

// History is PriceTrend plus the percentage change from the first to the
// last point.
func (a *TrendAnalyzer) History(ctx context.Context, productID uint, r TimeRange) (History, error) {
	points, err := a.PriceTrend(ctx, productID, r)
	if err != nil {
		return History{}, err
	}
	return History{Points: points, RiseOrFall: RiseOrFall(points)}, nil
}

// RiseOrFall is (last-first)/(first/100). It is 0 for a single point and
// nil for no points or a zero first price.
func RiseOrFall(points []PricePoint) *float64 {
	switch {
	case len(points) == 0:
		return nil
	case len(points) == 1:
		zero := 0.0
		return &zero
	}

	first, last := points[0].Price, points[len(points)-1].Price
	if first == 0 {
		return nil
	}
	change := float64(last-first) / (float64(first) / 100.0)
	return &change
}
