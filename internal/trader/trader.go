// Package trader executes buy orders through the PumpPortal trade API.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"pumpfun-sniper/internal/config"
	"pumpfun-sniper/internal/utils"
)

// Trader is an HTTP client for the PumpPortal trade endpoint. It satisfies
// the dispatcher's TradeAction interface.
type Trader struct {
	config *config.Config
	client *http.Client
}

// TradeResult captures the outcome of one buy order.
type TradeResult struct {
	Success   bool
	Signature string
	Error     error
	SolSpent  float64
	Timestamp time.Time
}

// tradeResponse is the PumpPortal API response body.
type tradeResponse struct {
	Signature string   `json:"signature"`
	ErrorMsg  string   `json:"error"`
	Errors    []string `json:"errors"`
}

// NewTrader creates a trader from the loaded configuration.
func NewTrader(cfg *config.Config) *Trader {
	return &Trader{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

// Buy places a buy order for the given mint. The error return feeds the
// dispatch supervisor's failure log; callers never block ingestion on it.
func (t *Trader) Buy(ctx context.Context, mint, symbol string) error {
	result := t.ExecuteBuy(ctx, mint, symbol)
	return result.Error
}

// ExecuteBuy performs a single buy order and returns the full result.
func (t *Trader) ExecuteBuy(ctx context.Context, mint, symbol string) *TradeResult {
	result := &TradeResult{
		Timestamp: time.Now(),
		SolSpent:  t.config.BuyAmountSOL,
	}

	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		result.Error = fmt.Errorf("invalid mint address: %w", err)
		return result
	}

	logrus.WithFields(logrus.Fields{
		"symbol":    symbol,
		"mint":      shortAddr(mint) + "...",
		"amount":    fmt.Sprintf("%.3f SOL", t.config.BuyAmountSOL),
		"usd_value": fmt.Sprintf("$%.2f", t.config.BuyAmountSOL*t.config.GetCurrentSOLPrice()),
	}).Info("🚀 Executing buy order")

	if t.config.SimulateMode {
		return t.simulateBuy(mint, symbol, result)
	}

	return t.executeBuy(ctx, mint, symbol, result)
}

// simulateBuy logs the order without hitting the API.
func (t *Trader) simulateBuy(mint, symbol string, result *TradeResult) *TradeResult {
	result.Success = true
	result.Signature = "SIMULATION_" + shortAddr(mint)

	logrus.WithFields(logrus.Fields{
		"symbol":    symbol,
		"mint":      shortAddr(mint) + "...",
		"signature": result.Signature,
	}).Info("📝 [SIMULATION] Buy completed")

	return result
}

func (t *Trader) executeBuy(ctx context.Context, mint, symbol string, result *TradeResult) *TradeResult {
	// PumpPortal expects form data, not JSON.
	form := url.Values{
		"action":           {"buy"},
		"mint":             {mint},
		"amount":           {strconv.FormatFloat(t.config.BuyAmountSOL, 'f', -1, 64)},
		"denominatedInSol": {"true"},
		"slippage":         {strconv.Itoa(t.config.SlippagePercent)},
		"priorityFee":      {strconv.FormatFloat(t.config.PriorityFee, 'f', -1, 64)},
		"pool":             {"pump"},
	}

	endpoint := t.config.PumpPortalURL + "?api-key=" + t.config.PumpPortalAPIKey

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		result.Error = fmt.Errorf("failed to build trade request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("trade request failed: %s", utils.SanitizeError(err, endpoint))
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Errorf("failed to read trade response: %w", err)
		return result
	}

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("trade API returned status %d: %s", resp.StatusCode, string(body))
		return result
	}

	var tr tradeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		result.Error = fmt.Errorf("failed to decode trade response: %w", err)
		return result
	}

	if tr.ErrorMsg != "" || len(tr.Errors) > 0 {
		msg := tr.ErrorMsg
		if msg == "" {
			msg = strings.Join(tr.Errors, ", ")
		}
		result.Error = fmt.Errorf("trade rejected: %s", msg)
		return result
	}

	result.Success = true
	result.Signature = tr.Signature

	logrus.WithFields(logrus.Fields{
		"symbol":    symbol,
		"mint":      shortAddr(mint) + "...",
		"signature": tr.Signature,
		"url":       "https://solscan.io/tx/" + tr.Signature,
		"latency":   fmt.Sprintf("%dms", time.Since(result.Timestamp).Milliseconds()),
	}).Info("✅ Buy executed")

	return result
}

func shortAddr(addr string) string {
	if len(addr) < 8 {
		return addr
	}
	return addr[:8]
}
