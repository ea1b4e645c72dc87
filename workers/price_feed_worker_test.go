package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"etf-invest-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PriceTick{}, &models.Transaction{}, &models.AuditLog{}))
	return db
}

func tickerServer(t *testing.T, prices map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ETF,ETH,BTC", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"prices":[`)
		first := true
		for sym, price := range prices {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"symbol":%q,"price_usd":%q}`, sym, price)
		}
		fmt.Fprint(w, `]}`)
	}))
}

func TestPriceFeedFetchUpsertsLatestTick(t *testing.T) {
	db := newWorkerTestDB(t)

	server := tickerServer(t, map[string]string{models.CryptoBTC: "50000.5"})
	defer server.Close()

	worker := NewPriceFeedWorker(db, nil, server.URL, time.Minute)
	require.NoError(t, worker.fetchOnce(context.Background()))

	var tick models.PriceTick
	require.NoError(t, db.Where("symbol = ?", models.CryptoBTC).First(&tick).Error)
	assert.True(t, tick.PriceUSD.Equal(decimal.RequireFromString("50000.5")))

	// a later fetch replaces the row instead of adding one
	server2 := tickerServer(t, map[string]string{models.CryptoBTC: "51000"})
	defer server2.Close()
	worker.baseURL = server2.URL
	require.NoError(t, worker.fetchOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.PriceTick{}).Where("symbol = ?", models.CryptoBTC).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, db.Where("symbol = ?", models.CryptoBTC).First(&tick).Error)
	assert.True(t, tick.PriceUSD.Equal(decimal.NewFromInt(51000)))
}

func TestPriceFeedSkipsNonPositivePrices(t *testing.T) {
	db := newWorkerTestDB(t)

	server := tickerServer(t, map[string]string{models.CryptoETH: "0"})
	defer server.Close()

	worker := NewPriceFeedWorker(db, nil, server.URL, time.Minute)
	require.NoError(t, worker.fetchOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.PriceTick{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPriceFeedPropagatesHTTPFailure(t *testing.T) {
	db := newWorkerTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	worker := NewPriceFeedWorker(db, nil, server.URL, time.Minute)
	assert.Error(t, worker.fetchOnce(context.Background()))
}
