package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/offersync/pkg/cache"
)

type listing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func TestMemory_SetGetDel(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()

	var out []listing
	assert.False(t, c.Get(ctx, "products", &out))

	require.NoError(t, c.Set(ctx, "products", []listing{{ID: 1, Name: "a"}}, time.Minute))
	require.True(t, c.Get(ctx, "products", &out))
	assert.Equal(t, []listing{{ID: 1, Name: "a"}}, out)

	require.NoError(t, c.Del(ctx, "products"))
	assert.False(t, c.Get(ctx, "products", &out))
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()

	require.NoError(t, c.Set(ctx, "k", 1, time.Nanosecond))
	time.Sleep(time.Millisecond)

	var n int
	assert.False(t, c.Get(ctx, "k", &n))
}
