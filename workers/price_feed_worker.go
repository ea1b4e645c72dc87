// workers/price_feed_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"etf-invest-system/models"
	"etf-invest-system/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// trackedSymbols are the assets the platform quotes.
var trackedSymbols = []string{models.CryptoETF, models.CryptoETH, models.CryptoBTC}

// tickerResponse matches the JSON shape of the external price feed.
type tickerResponse struct {
	Prices []struct {
		Symbol   string          `json:"symbol"`
		PriceUSD decimal.Decimal `json:"price_usd"`
	} `json:"prices"`
}

// PriceFeedWorker polls the external ticker API, persists the latest tick
// per symbol and mirrors it into the Redis cache read by the alert checker
// and the deposit/withdrawal valuation path.
type PriceFeedWorker struct {
	db         *gorm.DB
	rdb        *redis.Client // nil when Redis is not configured
	baseURL    string
	interval   time.Duration
	httpClient *http.Client
}

func NewPriceFeedWorker(db *gorm.DB, rdb *redis.Client, baseURL string, interval time.Duration) *PriceFeedWorker {
	return &PriceFeedWorker{
		db:         db,
		rdb:        rdb,
		baseURL:    baseURL,
		interval:   interval,
		httpClient: utils.HTTPClient,
	}
}

func (w *PriceFeedWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Price Feed Worker…")

	// initial fetch so prices exist before the first tick
	if err := w.fetchOnce(ctx); err != nil {
		log.Printf("⚠️ Initial price fetch failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.fetchOnce(ctx); err != nil {
				log.Printf("❌ Price fetch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Price Feed Worker stopped")
			return
		}
	}
}

func (w *PriceFeedWorker) fetchOnce(ctx context.Context) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid price feed URL '%s': %w", w.baseURL, err)
	}
	q := base.Query()
	q.Set("symbols", strings.Join(trackedSymbols, ","))
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create price feed request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("price feed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("price feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var response tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode price feed response: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range response.Prices {
		if p.PriceUSD.LessThanOrEqual(decimal.Zero) {
			log.Printf("⚠️ Skipping non-positive price for %s", p.Symbol)
			continue
		}

		tick := models.PriceTick{
			Symbol:    p.Symbol,
			PriceUSD:  p.PriceUSD,
			FetchedAt: now,
		}
		if err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_usd", "fetched_at", "updated_at"}),
		}).Create(&tick).Error; err != nil {
			log.Printf("❌ Failed to upsert price tick for %s: %v", p.Symbol, err)
			continue
		}

		if w.rdb != nil {
			if err := w.rdb.Set(ctx, "price:latest:"+p.Symbol, p.PriceUSD.String(), 5*time.Minute).Err(); err != nil {
				log.Printf("⚠️ Failed to cache price for %s: %v", p.Symbol, err)
			}
		}
	}

	log.Printf("📥 Price feed: refreshed %d symbol(s)", len(response.Prices))
	return nil
}
