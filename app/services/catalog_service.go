package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/offersync/app/clients"
	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/pkg/cache"
	"github.com/shashiranjanraj/offersync/pkg/event"
	"github.com/shashiranjanraj/offersync/pkg/lock"
	"github.com/shashiranjanraj/offersync/pkg/logger"
)

const (
	// namesLockKey serialises every change to the set of product names.
	namesLockKey    = "catalog:names"
	listingCacheKey = "products:active"
)

func productLockKey(id uint) string {
	return "product:" + strconv.FormatUint(uint64(id), 10)
}

// RegisterInput is the payload of a product registration.
type RegisterInput struct {
	Name        string
	Description string
}

// RenameInput carries the optional fields of a product edit.
type RenameInput struct {
	Name        *string
	Description *string
}

// ListedOffer is an in-stock active offer as shown in the listing.
type ListedOffer struct {
	Price        int64 `json:"price"`
	ItemsInStock int64 `json:"items_in_stock"`
}

// ListedProduct is one entry of the active product listing.
type ListedProduct struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Offers      []ListedOffer `json:"offers"`
}

// CatalogService owns product registration, edits and deactivation, and
// keeps the local catalogue consistent with the vendor.
type CatalogService struct {
	tx       repositories.TransactionManager
	products repositories.ProductRepository
	creds    *Credentials
	vendor   Vendor
	locks    lock.Locker
	bus      *event.Bus

	cache    cache.Store
	cacheTTL time.Duration

	mu      sync.Mutex
	lastKey string
}

func NewCatalogService(
	tx repositories.TransactionManager,
	products repositories.ProductRepository,
	creds *Credentials,
	vendor Vendor,
	locks lock.Locker,
	bus *event.Bus,
) *CatalogService {
	if bus == nil {
		bus = event.New()
	}
	return &CatalogService{
		tx:       tx,
		products: products,
		creds:    creds,
		vendor:   vendor,
		locks:    locks,
		bus:      bus,
	}
}

// WithListingCache reads ListActive through store. Entries are keyed on the
// catalog generation, so any committed product or offer write, from this
// process or another, makes the next read miss.
func (s *CatalogService) WithListingCache(store cache.Store, ttl time.Duration) *CatalogService {
	s.cache = store
	s.cacheTTL = ttl
	return s
}

// ─── Registration saga ────────────────────────────────────────────────────────

// reservation is the tentative local change made by reserve. description is
// what the vendor is told; a reactivated row keeps its stored description.
type reservation struct {
	product     models.Product
	description string
	reactivated bool
}

// Register creates a product, or reactivates an inactive one with the same
// name, and announces it to the vendor. Reactivation only flips the active
// flag; the stored description is left alone. The local change is undone when the
// vendor does not confirm it.
func (s *CatalogService) Register(ctx context.Context, in RegisterInput) (uint, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	inst, err := s.creds.Current(ctx)
	if err != nil {
		return 0, err
	}

	release, err := s.locks.Acquire(ctx, namesLockKey)
	if err != nil {
		return 0, fmt.Errorf("catalog: register: %w", err)
	}
	defer release()

	existing, err := s.products.FindByName(ctx, name)
	switch {
	case err == nil && existing.Active:
		return 0, ErrProductAlreadyExists
	case err == nil:
		releaseProduct, err := s.locks.Acquire(ctx, productLockKey(existing.ID))
		if err != nil {
			return 0, fmt.Errorf("catalog: register: %w", err)
		}
		defer releaseProduct()
	case !errors.Is(err, repositories.ErrNotFound):
		return 0, fmt.Errorf("catalog: register: %w", err)
	}

	res, err := s.reserve(ctx, inst.ID, name, in.Description)
	if err != nil {
		return 0, err
	}

	if err := s.confirm(ctx, inst.AccessToken, res); err != nil {
		if cerr := s.compensate(ctx, res); cerr != nil {
			return 0, errors.Join(err, cerr)
		}
		return 0, err
	}

	s.commit(ctx, res)
	return res.product.ID, nil
}

// reserve makes the tentative local change: a new active row, or the
// reactivation of an inactive row with the same name.
func (s *CatalogService) reserve(ctx context.Context, instanceID uint, name, description string) (reservation, error) {
	var res reservation

	err := s.tx.WithinTx(ctx, func(r repositories.TxRepos) error {
		existing, err := r.Products().FindByName(ctx, name)
		switch {
		case err == nil:
			if existing.Active {
				return ErrProductAlreadyExists
			}
			active := true
			if err := r.Products().Update(ctx, existing.ID, repositories.ProductFields{Active: &active}); err != nil {
				return err
			}
			existing.Active = true
			res = reservation{product: existing, description: description, reactivated: true}
			return nil

		case errors.Is(err, repositories.ErrNotFound):
			p := models.Product{
				Name:        name,
				Description: description,
				Active:      true,
				InstanceID:  instanceID,
			}
			if err := r.Products().Create(ctx, &p); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					return ErrProductAlreadyExists
				}
				return err
			}
			res = reservation{product: p, description: description}
			return nil

		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, ErrProductAlreadyExists) {
			return reservation{}, err
		}
		return reservation{}, fmt.Errorf("catalog: reserve %q: %w", name, err)
	}
	return res, nil
}

// confirm asks the vendor to register the reserved product.
func (s *CatalogService) confirm(ctx context.Context, token string, res reservation) error {
	err := s.vendor.RegisterProduct(ctx, token, clients.RegisterPayload{
		ID:          res.product.ID,
		Name:        res.product.Name,
		Description: res.description,
	})
	if err != nil {
		return upstreamError(err, true)
	}
	return nil
}

// commit publishes a confirmed registration.
func (s *CatalogService) commit(ctx context.Context, res reservation) {
	logger.WithCtx(ctx).Info("product registered",
		"product_id", res.product.ID,
		"name", res.product.Name,
		"reactivated", res.reactivated,
	)
	s.bus.FireAsync(ctx, event.CatalogChanged, res.product.ID)
}

// compensate undoes reserve: a new row is removed, a reactivated row goes
// back to inactive. It runs even when ctx has
// been cancelled.
func (s *CatalogService) compensate(ctx context.Context, res reservation) error {
	ctx = context.WithoutCancel(ctx)

	err := s.tx.WithinTx(ctx, func(r repositories.TxRepos) error {
		if !res.reactivated {
			return r.Products().Delete(ctx, res.product.ID)
		}
		inactive := false
		return r.Products().Update(ctx, res.product.ID, repositories.ProductFields{Active: &inactive})
	})
	if err != nil {
		logger.WithCtx(ctx).Error("registration compensation failed", "product_id", res.product.ID, "error", err)
		return fmt.Errorf("catalog: compensate product %d: %w", res.product.ID, err)
	}

	logger.WithCtx(ctx).Warn("registration rolled back", "product_id", res.product.ID, "reactivated", res.reactivated)
	return nil
}

// ─── Edits ────────────────────────────────────────────────────────────────────

// Rename applies the supplied name and description. The new name must not
// belong to any product, active or not, the renamed one included.
func (s *CatalogService) Rename(ctx context.Context, id uint, in RenameInput) (models.Product, error) {
	fields := repositories.ProductFields{Description: in.Description}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return models.Product{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		fields.Name = &name
	}

	release, err := s.locks.Acquire(ctx, namesLockKey)
	if err != nil {
		return models.Product{}, fmt.Errorf("catalog: rename: %w", err)
	}
	defer release()

	var updated models.Product
	err = s.tx.WithinTx(ctx, func(r repositories.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, id); err != nil {
			return err
		}
		if fields.Name != nil {
			taken, err := r.Products().NameTaken(ctx, *fields.Name)
			if err != nil {
				return err
			}
			if taken {
				return ErrProductAlreadyExists
			}
		}
		if err := r.Products().Update(ctx, id, fields); err != nil {
			return err
		}
		updated, err = r.Products().FindByID(ctx, id)
		return err
	})
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return models.Product{}, ErrProductNotFound
	case errors.Is(err, repositories.ErrDuplicate), errors.Is(err, ErrProductAlreadyExists):
		return models.Product{}, ErrProductAlreadyExists
	case err != nil:
		return models.Product{}, fmt.Errorf("catalog: rename product %d: %w", id, err)
	}

	s.bus.FireAsync(ctx, event.CatalogChanged, id)
	return updated, nil
}

// Deactivate hides the product and closes its active offer generation.
func (s *CatalogService) Deactivate(ctx context.Context, id uint) error {
	releaseNames, err := s.locks.Acquire(ctx, namesLockKey)
	if err != nil {
		return fmt.Errorf("catalog: deactivate: %w", err)
	}
	defer releaseNames()

	release, err := s.locks.Acquire(ctx, productLockKey(id))
	if err != nil {
		return fmt.Errorf("catalog: deactivate: %w", err)
	}
	defer release()

	var closed int64
	err = s.tx.WithinTx(ctx, func(r repositories.TxRepos) error {
		p, err := r.Products().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !p.Active {
			return ErrProductNotFound
		}
		inactive := false
		if err := r.Products().Update(ctx, id, repositories.ProductFields{Active: &inactive}); err != nil {
			return err
		}
		closed, err = r.Offers().BulkTransition(ctx, id, models.OfferActive, models.OfferHistoric)
		return err
	})
	switch {
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, ErrProductNotFound):
		return ErrProductNotFound
	case err != nil:
		return fmt.Errorf("catalog: deactivate product %d: %w", id, err)
	}

	logger.WithCtx(ctx).Info("product deactivated", "product_id", id, "closed_offers", closed)
	s.bus.FireAsync(ctx, event.CatalogChanged, id)
	return nil
}

// ─── Listing ──────────────────────────────────────────────────────────────────

// ListActive returns active products in creation order with their in-stock
// active offers.
func (s *CatalogService) ListActive(ctx context.Context) ([]ListedProduct, error) {
	var key string
	if s.cache != nil {
		// The generation is read before the rows: whatever the rows reflect
		// is at least as new as the key they are stored under.
		gen, err := s.products.CatalogGeneration(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog: list: %w", err)
		}
		key = listingKey(gen)

		var cached []ListedProduct
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	products, err := s.products.ListActiveWithOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}

	out := make([]ListedProduct, 0, len(products))
	for _, p := range products {
		lp := ListedProduct{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Offers:      make([]ListedOffer, 0, len(p.Offers)),
		}
		for _, o := range p.Offers {
			lp.Offers = append(lp.Offers, ListedOffer{Price: o.Price, ItemsInStock: o.ItemsInStock})
		}
		out = append(out, lp)
	}

	if s.cache != nil {
		s.storeListing(ctx, key, out)
	}
	return out, nil
}

func (s *CatalogService) storeListing(ctx context.Context, key string, out []ListedProduct) {
	if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
		logger.WithCtx(ctx).Warn("listing cache write failed", "error", err)
		return
	}

	s.mu.Lock()
	prev := s.lastKey
	s.lastKey = key
	s.mu.Unlock()

	if prev != "" && prev != key {
		if err := s.cache.Del(ctx, prev); err != nil {
			logger.WithCtx(ctx).Warn("listing cache cleanup failed", "error", err)
		}
	}
}

func listingKey(generation int64) string {
	return listingCacheKey + ":" + strconv.FormatInt(generation, 10)
}
