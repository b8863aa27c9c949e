package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/offersync/app/clients"
	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/app/repositories"
	"github.com/shashiranjanraj/offersync/pkg/logger"
)

// Vendor is the subset of the vendor client the services call.
type Vendor interface {
	Authenticate(ctx context.Context) (string, error)
	RegisterProduct(ctx context.Context, token string, p clients.RegisterPayload) error
	ProductOffers(ctx context.Context, token string, productID uint) ([]clients.OfferPayload, error)
}

// Clock is the time source for offer batches and trend windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Credentials resolves the stored vendor instance for every call that needs
// a token.
type Credentials struct {
	instances repositories.InstanceRepository
}

func NewCredentials(instances repositories.InstanceRepository) *Credentials {
	return &Credentials{instances: instances}
}

// Current returns the stored instance or ErrNotAuthenticated.
func (c *Credentials) Current(ctx context.Context) (models.Instance, error) {
	in, err := c.instances.Current(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Instance{}, ErrNotAuthenticated
	}
	if err != nil {
		return models.Instance{}, fmt.Errorf("services: load credentials: %w", err)
	}
	return in, nil
}

// Token is Current reduced to the access token.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	in, err := c.Current(ctx)
	if err != nil {
		return "", err
	}
	return in.AccessToken, nil
}

// Authenticator owns the one-off vendor handshake.
type Authenticator struct {
	creds     *Credentials
	instances repositories.InstanceRepository
	vendor    Vendor
	clock     Clock
}

func NewAuthenticator(instances repositories.InstanceRepository, vendor Vendor, clock Clock) *Authenticator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Authenticator{
		creds:     NewCredentials(instances),
		instances: instances,
		vendor:    vendor,
		clock:     clock,
	}
}

// Start reuses the stored instance, or performs the handshake and stores
// the issued token. The bool reports whether a new handshake happened.
func (a *Authenticator) Start(ctx context.Context) (models.Instance, bool, error) {
	in, err := a.creds.Current(ctx)
	if err == nil {
		return in, false, nil
	}
	if !errors.Is(err, ErrNotAuthenticated) {
		return models.Instance{}, false, err
	}

	token, err := a.vendor.Authenticate(ctx)
	if err != nil {
		return models.Instance{}, false, upstreamError(err, false)
	}

	in = models.Instance{AccessToken: token, CreatedAt: a.clock.Now().UTC()}
	if err := a.instances.Create(ctx, &in); err != nil {
		return models.Instance{}, false, fmt.Errorf("services: store instance: %w", err)
	}

	logger.WithCtx(ctx).Info("vendor handshake completed", "instance_id", in.ID)
	return in, true, nil
}
