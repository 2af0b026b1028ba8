// Package price maintains a cached SOL/USD price used to log the dollar
// value of buy orders.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const priceURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

type PriceService struct {
	currentPrice float64
	lastUpdated  time.Time
	mutex        sync.RWMutex
	client       *http.Client
}

type coinGeckoResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

func NewPriceService() *PriceService {
	return &PriceService{
		currentPrice: 190.0, // fallback until the first fetch succeeds
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start fetches the initial price and launches the background refresh loop.
func (ps *PriceService) Start(ctx context.Context) error {
	logrus.Info("💰 Starting SOL price service...")

	if err := ps.fetchPrice(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to fetch initial SOL price, using default")
	} else {
		logrus.WithField("price", fmt.Sprintf("$%.2f", ps.GetPrice())).Info("✅ Initial SOL price fetched")
	}

	go ps.priceUpdateLoop(ctx)

	return nil
}

func (ps *PriceService) priceUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("🛑 SOL price service stopping")
			return
		case <-ticker.C:
			if err := ps.fetchPrice(ctx); err != nil {
				logrus.WithError(err).Warn("Failed to update SOL price")
			} else {
				logrus.WithField("price", fmt.Sprintf("$%.2f", ps.GetPrice())).Debug("💰 SOL price updated")
			}
		}
	}
}

func (ps *PriceService) fetchPrice(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, priceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := ps.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var priceResp coinGeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		return fmt.Errorf("failed to decode price response: %w", err)
	}

	newPrice := priceResp.Solana.USD
	if newPrice <= 0 {
		return fmt.Errorf("invalid price received: %f", newPrice)
	}

	ps.mutex.Lock()
	ps.currentPrice = newPrice
	ps.lastUpdated = time.Now()
	ps.mutex.Unlock()

	return nil
}

// GetPrice returns the most recently fetched SOL price.
func (ps *PriceService) GetPrice() float64 {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()
	return ps.currentPrice
}

// GetLastUpdated returns when the price was last refreshed.
func (ps *PriceService) GetLastUpdated() time.Time {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()
	return ps.lastUpdated
}
