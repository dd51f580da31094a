package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
)

func newCacheRepo(t *testing.T) (*PaymentRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	// db stays nil: these tests exercise the cache path only and must not
	// reach Postgres.
	return &PaymentRepository{redis: rdb, logger: zap.NewNop()}, mr
}

func TestGetPaymentByID_CacheHit(t *testing.T) {
	repo, mr := newCacheRepo(t)

	cached := dto.Payment{
		PaymentID:     "5745459419",
		OrderID:       "pkg:starter:user-1",
		UserID:        "user-1",
		Status:        dto.StatusWaiting,
		PriceAmount:   100,
		PriceCurrency: "usd",
		PayAmount:     0.0025,
		PayCurrency:   "btc",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, mr.Set("payment:5745459419", string(data)))

	got, err := repo.GetPaymentByID(context.Background(), "5745459419")
	require.NoError(t, err)
	assert.Equal(t, cached.PaymentID, got.PaymentID)
	assert.Equal(t, cached.Status, got.Status)
	assert.Equal(t, cached.PayAmount, got.PayAmount)
}
