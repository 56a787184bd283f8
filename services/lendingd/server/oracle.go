package server

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type quote struct {
	price uint64
	asOf  int64
}

// Oracle is the daemon's in-process price source. Feeds are seeded from
// configuration and refreshed through the admin endpoint; the engine's
// staleness check rejects feeds that stop updating.
type Oracle struct {
	mu     sync.RWMutex
	quotes map[string]quote
	now    func() int64
}

// NewOracle seeds an oracle with starting prices stamped at the current time.
func NewOracle(feeds map[string]uint64) *Oracle {
	o := &Oracle{quotes: make(map[string]quote), now: func() int64 { return time.Now().Unix() }}
	for asset, price := range feeds {
		o.SetPrice(asset, price)
	}
	return o
}

// SetPrice records a new quote for the asset, stamped now.
func (o *Oracle) SetPrice(asset string, price uint64) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return
	}
	o.mu.Lock()
	o.quotes[asset] = quote{price: price, asOf: o.now()}
	o.mu.Unlock()
}

// PriceOf implements the lending.PriceOracle interface.
func (o *Oracle) PriceOf(asset string) (uint64, int64, error) {
	o.mu.RLock()
	q, ok := o.quotes[asset]
	o.mu.RUnlock()
	if !ok {
		return 0, 0, fmt.Errorf("oracle: no feed for %s", asset)
	}
	return q.price, q.asOf, nil
}
