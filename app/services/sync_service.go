package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/pkg/event"
	"github.com/shashiranjanraj/offersync/pkg/lock"
	"github.com/shashiranjanraj/offersync/pkg/logger"
	"github.com/shashiranjanraj/offersync/pkg/metrics"
	"github.com/shashiranjanraj/offersync/pkg/workerpool"
)

// FailurePolicy decides what a cycle does after a product fails.
type FailurePolicy string

const (
	// PolicyAbort stops the cycle at the first failure. Products synced
	// before it keep their commits.
	PolicyAbort FailurePolicy = "abort"
	// PolicyIsolate attempts every product and joins the failures.
	PolicyIsolate FailurePolicy = "isolate"
)

// ParseFailurePolicy maps a config value to a policy, defaulting to abort.
func ParseFailurePolicy(s string) FailurePolicy {
	if FailurePolicy(s) == PolicyIsolate {
		return PolicyIsolate
	}
	return PolicyAbort
}

// ProductResult is the outcome of syncing one product.
type ProductResult struct {
	ProductID uint   `json:"product_id"`
	Offers    int    `json:"offers"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Closed    int64  `json:"closed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CycleReport summarises one sync cycle.
type CycleReport struct {
	Policy   FailurePolicy   `json:"policy"`
	Products []ProductResult `json:"products"`
	Failed   int             `json:"failed"`
	Duration string          `json:"duration"`
}

// SyncEngine refreshes the offer history of every active product from the
// vendor.
type SyncEngine struct {
	tx       repositories.TransactionManager
	products repositories.ProductRepository
	creds    *Credentials
	vendor   Vendor
	locks    lock.Locker
	clock    Clock
	bus      *event.Bus

	policy  FailurePolicy
	workers int
}

func NewSyncEngine(
	tx repositories.TransactionManager,
	products repositories.ProductRepository,
	creds *Credentials,
	vendor Vendor,
	locks lock.Locker,
	clock Clock,
	bus *event.Bus,
) *SyncEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	if bus == nil {
		bus = event.New()
	}
	return &SyncEngine{
		tx:       tx,
		products: products,
		creds:    creds,
		vendor:   vendor,
		locks:    locks,
		clock:    clock,
		bus:      bus,
		policy:   PolicyAbort,
		workers:  1,
	}
}

// WithPolicy sets the failure policy and the worker count used by isolated
// cycles.
func (e *SyncEngine) WithPolicy(p FailurePolicy, workers int) *SyncEngine {
	e.policy = p
	if workers > 0 {
		e.workers = workers
	}
	return e
}

// RunCycle syncs every active product once. The report is returned even
// when the cycle fails.
func (e *SyncEngine) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	report := CycleReport{Policy: e.policy, Products: []ProductResult{}}

	err := e.runCycle(ctx, &report)

	report.Duration = time.Since(start).String()
	metrics.RecordSyncCycle(err != nil, start)

	log := logger.WithCtx(ctx)
	if err != nil {
		log.Error("sync cycle failed", "policy", e.policy, "products", len(report.Products), "failed", report.Failed, "error", err)
	} else {
		log.Info("sync cycle finished", "products", len(report.Products), "duration", report.Duration)
	}
	e.bus.Fire(ctx, event.CycleFinished, report)

	return report, err
}

func (e *SyncEngine) runCycle(ctx context.Context, report *CycleReport) error {
	token, err := e.creds.Token(ctx)
	if err != nil {
		return err
	}

	products, err := e.products.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("sync: list products: %w", err)
	}

	if e.policy == PolicyIsolate {
		return e.runIsolated(ctx, token, products, report)
	}

	for _, p := range products {
		res, err := e.syncProduct(ctx, token, p.ID)
		report.Products = append(report.Products, res)
		if err != nil {
			report.Failed++
			return fmt.Errorf("sync: product %d: %w", p.ID, err)
		}
	}
	return nil
}

func (e *SyncEngine) runIsolated(ctx context.Context, token string, products []models.Product, report *CycleReport) error {
	pool := workerpool.New(e.workers)
	defer pool.Shutdown()

	order := make([]int, len(products))
	for i := range order {
		order[i] = i
	}

	results := make([]ProductResult, len(products))
	err := workerpool.Each(ctx, pool, order, func(ctx context.Context, i int) error {
		id := products[i].ID
		res, err := e.syncProduct(ctx, token, id)
		results[i] = res
		if err != nil {
			return fmt.Errorf("sync: product %d: %w", id, err)
		}
		return nil
	})

	for i := range results {
		if results[i].ProductID == 0 {
			results[i].ProductID = products[i].ID
			results[i].Error = "not attempted"
		}
		if results[i].Error != "" {
			report.Failed++
		}
	}
	report.Products = results
	return err
}

// SyncProduct runs one product outside a cycle.
func (e *SyncEngine) SyncProduct(ctx context.Context, productID uint) (ProductResult, error) {
	token, err := e.creds.Token(ctx)
	if err != nil {
		return ProductResult{ProductID: productID}, err
	}
	return e.syncProduct(ctx, token, productID)
}

// syncProduct fetches the vendor offers first and then, in one transaction,
// closes the active generation and appends the new one. A failed fetch
// leaves the previous generation active.
func (e *SyncEngine) syncProduct(ctx context.Context, token string, productID uint) (res ProductResult, err error) {
	res.ProductID = productID
	log := logger.WithCtx(ctx).With("product_id", productID)

	defer func() {
		switch {
		case err != nil:
			res.Error = err.Error()
			metrics.SyncProducts.WithLabelValues("failed").Inc()
		case res.Skipped:
			metrics.SyncProducts.WithLabelValues("skipped").Inc()
		default:
			metrics.SyncProducts.WithLabelValues("success").Inc()
		}
	}()

	release, err := e.locks.Acquire(ctx, productLockKey(productID))
	if err != nil {
		return res, fmt.Errorf("lock: %w", err)
	}
	defer release()

	payload, err := e.vendor.ProductOffers(ctx, token, productID)
	if err != nil {
		return res, upstreamError(err, false)
	}
	for _, o := range payload {
		if o.ItemsInStock < 0 {
			return res, fmt.Errorf("%w: offer %d has negative items_in_stock", ErrUpstreamUnavailable, o.ID)
		}
	}

	acquiredOn := e.clock.Now().UTC().Truncate(time.Microsecond)

	err = e.tx.WithinTx(ctx, func(r repositories.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repositories.ErrNotFound) || (err == nil && !p.Active) {
			res.Skipped = true
			return nil
		}
		if err != nil {
			return err
		}

		best, err := r.Offers().MinActivePrice(ctx, productID)
		if err != nil {
			return err
		}
		res.Closed, err = r.Offers().BulkTransition(ctx, productID, models.OfferActive, models.OfferHistoric)
		if err != nil {
			return err
		}

		batch := make([]*models.Offer, 0, len(payload))
		for _, o := range payload {
			batch = append(batch, &models.Offer{
				ProductID:    productID,
				Price:        o.Price,
				ItemsInStock: o.ItemsInStock,
				AcquiredOn:   acquiredOn,
				Status:       models.OfferActive,
			})
		}
		if len(batch) == 0 {
			res.Synthetic = true
			batch = append(batch, &models.Offer{
				ProductID:    productID,
				Price:        best,
				ItemsInStock: 0,
				AcquiredOn:   acquiredOn,
				Status:       models.OfferActive,
			})
		}
		res.Offers = len(batch)
		return r.Offers().Append(ctx, batch...)
	})
	if err != nil {
		return res, fmt.Errorf("store offers: %w", err)
	}

	if res.Skipped {
		log.Info("product deactivated during sync, skipped")
		return res, nil
	}

	if res.Synthetic {
		metrics.OffersIngested.WithLabelValues("synthetic").Inc()
	} else {
		metrics.OffersIngested.WithLabelValues("upstream").Add(float64(res.Offers))
	}
	log.Debug("offers synced", "offers", res.Offers, "closed", res.Closed, "synthetic", res.Synthetic)
	e.bus.Fire(ctx, event.OffersSynced, productID)
	return res, nil
}
