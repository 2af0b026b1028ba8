// Package dispatch matches decoded token creation events against the
// configured watch set and hands matches to the trade action without
// blocking the ingestion path.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"pumpfun-sniper/internal/events"
)

// TradeAction executes a buy for a matched token. Implementations own their
// own timeouts and retries; the dispatcher only records the outcome.
type TradeAction interface {
	Buy(ctx context.Context, mint, symbol string) error
}

// WatchSet is a read-only set of uppercase token symbols. It is built once
// at startup and safely shared across concurrent dispatches.
type WatchSet map[string]struct{}

// NewWatchSet normalizes the given symbols to uppercase, dropping blanks.
func NewWatchSet(symbols []string) WatchSet {
	set := make(WatchSet, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return set
}

// Contains tests membership after uppercase normalization.
func (ws WatchSet) Contains(symbol string) bool {
	_, ok := ws[strings.ToUpper(symbol)]
	return ok
}

// Len returns the number of watched symbols.
func (ws WatchSet) Len() int { return len(ws) }

// Symbols returns the watched symbols, for logging.
func (ws WatchSet) Symbols() []string {
	out := make([]string, 0, len(ws))
	for s := range ws {
		out = append(out, s)
	}
	return out
}

// Dispatcher fires buy orders for watched symbols. Each match runs in its
// own goroutine so the ingestion loop can handle the next frame
// immediately; failures are captured and logged here rather than dropped.
type Dispatcher struct {
	watch  WatchSet
	action TradeAction
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given watch set and action.
func NewDispatcher(watch WatchSet, action TradeAction) *Dispatcher {
	return &Dispatcher{
		watch:  watch,
		action: action,
	}
}

// Dispatch tests the event's symbol against the watch set and, on a match,
// invokes the trade action asynchronously. It returns true when a buy was
// started. It never blocks on the trade action.
func (d *Dispatcher) Dispatch(ctx context.Context, event *events.CreateEvent) bool {
	if !d.watch.Contains(event.Symbol) {
		logrus.WithFields(logrus.Fields{
			"symbol": event.Symbol,
			"mint":   event.Mint,
		}).Debug("Symbol not in watch set, skipping")
		return false
	}

	logrus.WithFields(logrus.Fields{
		"symbol":    event.Symbol,
		"name":      event.Name,
		"mint":      event.Mint,
		"signature": event.Signature,
	}).Info("🎯 Watched symbol matched, initiating buy")

	d.wg.Add(1)
	go func(mint, symbol string) {
		defer d.wg.Done()
		if err := d.action.Buy(ctx, mint, symbol); err != nil {
			logrus.WithFields(logrus.Fields{
				"symbol": symbol,
				"mint":   mint,
				"error":  err.Error(),
			}).Error("❌ Buy failed")
		}
	}(event.Mint, event.Symbol)

	return true
}

// Wait blocks until all in-flight buys have finished. Used during shutdown
// to drain dispatched work.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
