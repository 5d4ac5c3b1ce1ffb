package txbuilder

import (
	"context"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// nonceTracker hands out nonces that account for transactions built but not yet
// visible in the node's pending pool.
type nonceTracker struct {
	mu       sync.Mutex
	accounts map[common.Address]*accountNonces
}

// accountNonces holds the local nonce state of one sender. Every nonce below
// next that is not in free is held by an outstanding reservation.
type accountNonces struct {
	next uint64
	free []uint64 // sorted ascending, all below next
}

func newNonceTracker() *nonceTracker {
	return &nonceTracker{accounts: make(map[common.Address]*accountNonces)}
}

// reserve hands out the lowest released nonce the node has not used yet, or
// max(pending nonce, next local nonce) when there is none.
func (t *nonceTracker) reserve(ctx context.Context, network Network, address common.Address) (uint64, error) {
	pending, err := network.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get pending nonce")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.accounts[address]
	if !ok {
		acc = &accountNonces{}
		t.accounts[address] = acc
	}

	// nonces the node already counts were taken by someone else
	drop := 0
	for drop < len(acc.free) && acc.free[drop] < pending {
		drop++
	}
	acc.free = acc.free[drop:]

	if len(acc.free) > 0 {
		nonce := acc.free[0]
		acc.free = acc.free[1:]
		return nonce, nil
	}

	nonce := max(pending, acc.next)
	acc.next = nonce + 1
	return nonce, nil
}

// release makes a reserved nonce available again so a failed request leaves no
// gap. Reservations above nonce keep theirs.
func (t *nonceTracker) release(address common.Address, nonce uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.accounts[address]
	if !ok || nonce >= acc.next {
		return
	}

	if nonce != acc.next-1 {
		i, found := slices.BinarySearch(acc.free, nonce)
		if !found {
			acc.free = slices.Insert(acc.free, i, nonce)
		}
		return
	}

	// the highest reservation went away, shrink past any freed nonces below it
	acc.next = nonce
	for n := len(acc.free); n > 0 && acc.free[n-1] == acc.next-1; n-- {
		acc.next--
		acc.free = acc.free[:n-1]
	}
}
