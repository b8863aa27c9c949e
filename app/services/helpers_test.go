package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/app/clients"
	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/pkg/event"
	"github.com/shashiranjanraj/offersync/pkg/lock"
	"github.com/shashiranjanraj/offersync/pkg/testkit"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type vendorMock struct {
	mock.Mock
}

func (m *vendorMock) Authenticate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *vendorMock) RegisterProduct(ctx context.Context, token string, p clients.RegisterPayload) error {
	return m.Called(ctx, token, p).Error(0)
}

func (m *vendorMock) ProductOffers(ctx context.Context, token string, productID uint) ([]clients.OfferPayload, error) {
	args := m.Called(ctx, token, productID)
	offers, _ := args.Get(0).([]clients.OfferPayload)
	return offers, args.Error(1)
}

type fixture struct {
	tx        *repositories.TxManagerGorm
	products  *repositories.ProductGormRepository
	offers    *repositories.OfferGormRepository
	instances *repositories.InstanceGormRepository
	creds     *services.Credentials
	vendor    *vendorMock
	locks     *lock.Memory
	bus       *event.Bus
	clock     *testkit.Clock

	catalog *services.CatalogService
	sync    *services.SyncEngine
	trend   *services.TrendAnalyzer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testkit.NewDB(t)
	f := &fixture{
		tx:        repositories.NewTxManagerGorm(db),
		products:  repositories.NewProductGormRepository(db),
		offers:    repositories.NewOfferGormRepository(db),
		instances: repositories.NewInstanceGormRepository(db),
		vendor:    &vendorMock{},
		locks:     lock.NewMemory(),
		bus:       event.New(),
		clock:     testkit.NewClock(epoch),
	}
	f.creds = services.NewCredentials(f.instances)
	f.catalog = services.NewCatalogService(f.tx, f.products, f.creds, f.vendor, f.locks, f.bus)
	f.sync = services.NewSyncEngine(f.tx, f.products, f.creds, f.vendor, f.locks, f.clock, f.bus)
	f.trend = services.NewTrendAnalyzer(f.products, f.offers, f.clock, 5*time.Minute)

	t.Cleanup(func() { f.vendor.AssertExpectations(t) })
	return f
}

// authenticated stores an instance with token "tok".
func (f *fixture) authenticated(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.instances.Create(context.Background(), &models.Instance{AccessToken: "tok", CreatedAt: epoch}))
	return f
}

// register registers name with the vendor accepting the call.
func (f *fixture) register(t *testing.T, name string) uint {
	t.Helper()
	f.vendor.On("RegisterProduct", mock.Anything, "tok", mock.MatchedBy(func(p clients.RegisterPayload) bool {
		return p.Name == name
	})).Return(nil).Once()
	id, err := f.catalog.Register(context.Background(), services.RegisterInput{Name: name, Description: name + " description"})
	require.NoError(t, err)
	return id
}

func (f *fixture) seedOffers(t *testing.T, productID uint, at time.Time, status models.OfferStatus, pairs ...[2]int64) {
	t.Helper()
	batch := make([]*models.Offer, 0, len(pairs))
	for _, p := range pairs {
		batch = append(batch, &models.Offer{
			ProductID:    productID,
			Price:        p[0],
			ItemsInStock: p[1],
			AcquiredOn:   at,
			Status:       status,
		})
	}
	require.NoError(t, f.offers.Append(context.Background(), batch...))
}

func offers(pairs ...[2]int64) []clients.OfferPayload {
	out := make([]clients.OfferPayload, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, clients.OfferPayload{ID: int64(i + 1), Price: p[0], ItemsInStock: p[1]})
	}
	return out
}
