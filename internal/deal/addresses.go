package deal

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoAddressPool means no escrow address is configured for a coin
var ErrNoAddressPool = errors.New("no escrow address pool for coin")

// Default escrow pools on BSC. Two addresses per coin, rotated per
// deal so consecutive deals do not share a deposit address.
var defaultPools = map[string][]string{
	"USDT": {
		"0xDA4c2a5B876b0c7521e1c752690D8705080000fE",
		"0xf282e789e835ed379aea84ece204d2d643e6774f",
	},
	"USDC": {
		"0xAe6313dE2fDD754734074D8a6F4835c10827115b",
		"0xC941064db91dB2B54e3Acd909a7020583f05bD14",
	},
}

// AddressBook hands out escrow deposit addresses round-robin per coin
// and answers membership checks for the verify command.
type AddressBook struct {
	mu    sync.Mutex
	pools map[string][]string
	next  map[string]int
}

// NewAddressBook creates a book with the default pools
func NewAddressBook() *AddressBook {
	return NewAddressBookWithPools(defaultPools)
}

// NewAddressBookWithPools creates a book with explicit pools, keyed by
// upper-case coin symbol
func NewAddressBookWithPools(pools map[string][]string) *AddressBook {
	cp := make(map[string][]string, len(pools))
	for coin, addrs := range pools {
		cp[strings.ToUpper(coin)] = append([]string(nil), addrs...)
	}
	return &AddressBook{pools: cp, next: make(map[string]int)}
}

// Next returns the next deposit address for a coin in rotation
func (b *AddressBook) Next(coin string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.ToUpper(coin)
	pool := b.pools[key]
	if len(pool) == 0 {
		return "", ErrNoAddressPool
	}
	addr := pool[b.next[key]%len(pool)]
	b.next[key]++
	return addr, nil
}

// Find returns the coin whose pool holds addr, case-insensitively
func (b *AddressBook) Find(addr string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for coin, pool := range b.pools {
		for _, a := range pool {
			if strings.EqualFold(a, addr) {
				return coin, true
			}
		}
	}
	return "", false
}

// Contains reports whether addr belongs to any pool
func (b *AddressBook) Contains(addr string) bool {
	_, ok := b.Find(addr)
	return ok
}
