package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/app/clients"
	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/pkg/cache"
	"github.com/shashiranjanraj/offersync/pkg/event"
)

func TestRegister_RequiresCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.Register(context.Background(), services.RegisterInput{Name: "Product 1"})
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
}

func TestRegister_RejectsEmptyName(t *testing.T) {
	f := newFixture(t).authenticated(t)

	_, err := f.catalog.Register(context.Background(), services.RegisterInput{Name: "   "})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestRegister_CreatesAndSendsPayload(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	var sent clients.RegisterPayload
	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(clients.RegisterPayload) }).
		Return(nil).Once()

	id, err := f.catalog.Register(ctx, services.RegisterInput{Name: " Product 1 ", Description: "first"})
	require.NoError(t, err)

	assert.Equal(t, clients.RegisterPayload{ID: id, Name: "Product 1", Description: "first"}, sent)

	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, "Product 1", p.Name)
}

func TestCatalogChangedIsPublished(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	changed := make(chan uint, 3)
	f.bus.Listen(event.CatalogChanged, func(_ context.Context, p interface{}) { changed <- p.(uint) })

	id := f.register(t, "Product 1")
	_, err := f.catalog.Rename(ctx, id, services.RenameInput{Description: strPtr("d")})
	require.NoError(t, err)
	require.NoError(t, f.catalog.Deactivate(ctx, id))
	f.bus.Wait()
	close(changed)

	var got []uint
	for p := range changed {
		got = append(got, p)
	}
	assert.Equal(t, []uint{id, id, id}, got)
}

func TestRegister_ActiveNameConflicts(t *testing.T) {
	f := newFixture(t).authenticated(t)
	f.register(t, "Product 1")

	_, err := f.catalog.Register(context.Background(), services.RegisterInput{Name: "Product 1"})
	assert.ErrorIs(t, err, services.ErrProductAlreadyExists)
}

func TestRegister_CompensatesNewRowOnRejection(t *testing.T) {
	for _, status := range []int{400, 401} {
		f := newFixture(t).authenticated(t)
		ctx := context.Background()

		f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
			Return(&clients.StatusError{Endpoint: "register", Status: status}).Once()

		_, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1"})

		var rejected *services.UpstreamRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, status, rejected.Status)
		assert.ErrorIs(t, err, services.ErrUpstreamRejected)

		_, err = f.products.FindByName(ctx, "Product 1")
		assert.ErrorIs(t, err, repositories.ErrNotFound, "provisional row must be removed")
	}
}

func TestRegister_UnexpectedStatusAndTransportFailure(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
		Return(&clients.StatusError{Endpoint: "register", Status: 500}).Once()
	_, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1"})

	var unexpected *services.UpstreamUnexpectedError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, 500, unexpected.Status)
	assert.ErrorIs(t, err, services.ErrUpstreamRejected)

	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
		Return(clients.ErrUnavailable).Once()
	_, err = f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1"})
	assert.ErrorIs(t, err, services.ErrUpstreamUnavailable)

	active, err := f.products.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRegister_ReactivatesInactiveRow(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	id := f.register(t, "Product 1")
	f.seedOffers(t, id, epoch, models.OfferActive, [2]int64{1000, 5})
	require.NoError(t, f.catalog.Deactivate(ctx, id))

	f.vendor.On("RegisterProduct", mock.Anything, "tok", clients.RegisterPayload{ID: id, Name: "Product 1", Description: "again"}).
		Return(nil).Once()

	again, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1", Description: "again"})
	require.NoError(t, err)
	assert.Equal(t, id, again, "reactivation keeps the identifier")

	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, "Product 1 description", p.Description, "reactivation keeps the stored description")

	history, err := f.offers.Query(ctx, repositories.OfferQuery{ProductID: id})
	require.NoError(t, err)
	assert.Len(t, history, 1, "history survives reactivation")
}

func TestRegister_CompensationRestoresReactivatedRow(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	id := f.register(t, "Product 1")
	require.NoError(t, f.catalog.Deactivate(ctx, id))

	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
		Return(&clients.StatusError{Endpoint: "register", Status: 400}).Once()

	_, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1", Description: "changed"})
	assert.ErrorIs(t, err, services.ErrUpstreamRejected)

	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err, "a reactivated row is never deleted")
	assert.False(t, p.Active)
	assert.Equal(t, "Product 1 description", p.Description)
}

func TestRegister_CompensatesAfterCancellation(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(clients.ErrUnavailable).Once()

	_, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Product 1"})
	assert.ErrorIs(t, err, services.ErrUpstreamUnavailable)

	_, err = f.products.FindByName(context.Background(), "Product 1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRename(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	one := f.register(t, "Product 1")
	two := f.register(t, "Product 2")
	require.NoError(t, f.catalog.Deactivate(ctx, two))

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.catalog.Rename(ctx, 999, services.RenameInput{Name: strPtr("x")})
		assert.ErrorIs(t, err, services.ErrProductNotFound)
	})

	t.Run("name of an inactive product", func(t *testing.T) {
		_, err := f.catalog.Rename(ctx, one, services.RenameInput{Name: strPtr("Product 2")})
		assert.ErrorIs(t, err, services.ErrProductAlreadyExists)
	})

	t.Run("own name", func(t *testing.T) {
		_, err := f.catalog.Rename(ctx, one, services.RenameInput{Name: strPtr("Product 1"), Description: strPtr("kept")})
		assert.ErrorIs(t, err, services.ErrProductAlreadyExists)

		p, err := f.products.FindByID(ctx, one)
		require.NoError(t, err)
		assert.NotEqual(t, "kept", p.Description, "a rejected rename applies nothing")
	})

	t.Run("description only", func(t *testing.T) {
		p, err := f.catalog.Rename(ctx, one, services.RenameInput{Description: strPtr("new text")})
		require.NoError(t, err)
		assert.Equal(t, "Product 1", p.Name)
		assert.Equal(t, "new text", p.Description)
	})

	t.Run("both fields", func(t *testing.T) {
		p, err := f.catalog.Rename(ctx, one, services.RenameInput{Name: strPtr("Renamed"), Description: strPtr("d")})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", p.Name)
		assert.Equal(t, "d", p.Description)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := f.catalog.Rename(ctx, one, services.RenameInput{Name: strPtr("")})
		assert.ErrorIs(t, err, services.ErrInvalidInput)
	})
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	id := f.register(t, "Product 1")
	f.seedOffers(t, id, epoch, models.OfferHistoric, [2]int64{900, 1})
	f.seedOffers(t, id, epoch.Add(time.Minute), models.OfferActive, [2]int64{1000, 5}, [2]int64{1001, 2})

	require.NoError(t, f.catalog.Deactivate(ctx, id))

	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, p.Active)

	active, err := f.offers.Query(ctx, repositories.OfferQuery{ProductID: id, Statuses: []models.OfferStatus{models.OfferActive}})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.offers.Query(ctx, repositories.OfferQuery{ProductID: id})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, f.catalog.Deactivate(ctx, id), services.ErrProductNotFound, "already inactive")
	assert.ErrorIs(t, f.catalog.Deactivate(ctx, 999), services.ErrProductNotFound)
}

func TestListActive_FiltersOffersAndProducts(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	one := f.register(t, "Product 1")
	two := f.register(t, "Product 2")
	three := f.register(t, "Product 3")
	f.seedOffers(t, one, epoch, models.OfferHistoric, [2]int64{1, 1})
	f.seedOffers(t, one, epoch.Add(time.Minute), models.OfferActive, [2]int64{1000, 5}, [2]int64{1001, 0}, [2]int64{1002, 7})
	f.seedOffers(t, two, epoch.Add(time.Minute), models.OfferActive, [2]int64{1000, 5})
	require.NoError(t, f.catalog.Deactivate(ctx, three))

	listing, err := f.catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, listing, 2)

	assert.Equal(t, one, listing[0].ID)
	assert.Equal(t, []services.ListedOffer{{Price: 1000, ItemsInStock: 5}, {Price: 1002, ItemsInStock: 7}}, listing[0].Offers)
	assert.Equal(t, two, listing[1].ID)
	assert.Equal(t, []services.ListedOffer{{Price: 1000, ItemsInStock: 5}}, listing[1].Offers)
}

// listingHook calls after once, between reading the product rows and
// returning them to the service.
type listingHook struct {
	*repositories.ProductGormRepository
	after func()
}

func (h *listingHook) ListActiveWithOffers(ctx context.Context) ([]models.Product, error) {
	products, err := h.ProductGormRepository.ListActiveWithOffers(ctx)
	if fn := h.after; fn != nil {
		h.after = nil
		fn()
	}
	return products, err
}

func TestListActive_CacheFollowsCommittedWrites(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()
	f.catalog.WithListingCache(cache.NewMemory(), time.Minute)

	id := f.register(t, "Product 1")

	first, err := f.catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Empty(t, first[0].Offers)

	// No event is fired for a direct write; the generation still moves.
	f.seedOffers(t, id, epoch, models.OfferActive, [2]int64{1000, 5})
	fresh, err := f.catalog.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh[0].Offers, 1)

	cached, err := f.catalog.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)

	require.NoError(t, f.catalog.Deactivate(ctx, id))
	empty, err := f.catalog.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListActive_SyncBetweenReadAndCacheWrite(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	id := f.register(t, "Product 1")
	f.seedOffers(t, id, epoch, models.OfferActive, [2]int64{1000, 5})

	// A catalog with its own bus stands in for a server process that never
	// hears about syncs run elsewhere.
	hook := &listingHook{ProductGormRepository: f.products}
	catalog := services.NewCatalogService(f.tx, hook, f.creds, f.vendor, f.locks, event.New()).
		WithListingCache(cache.NewMemory(), time.Minute)

	f.vendor.On("ProductOffers", mock.Anything, "tok", id).Return(offers(), nil).Once()
	hook.after = func() {
		res, err := f.sync.SyncProduct(ctx, id)
		require.NoError(t, err)
		require.True(t, res.Synthetic)
	}

	stale, err := catalog.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []services.ListedOffer{{Price: 1000, ItemsInStock: 5}}, stale[0].Offers,
		"rows read before the sync committed")

	after, err := catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Empty(t, after[0].Offers, "the synthetic offer is out of stock and the old one historic")
}

func TestNoTwoActiveProductsShareAName(t *testing.T) {
	f := newFixture(t).authenticated(t)
	ctx := context.Background()

	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.Anything).Return(nil)

	const attempts = 8
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := f.catalog.Register(ctx, services.RegisterInput{Name: "Contended"})
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < attempts; i++ {
		err := <-errs
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, services.ErrProductAlreadyExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func strPtr(s string) *string { return &s }
