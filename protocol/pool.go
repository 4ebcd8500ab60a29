// Package protocol implements spec §4.5: the BACKUP/RESTORE/DELETE/RECLAIM
// engine, its bounded concurrency pools, and the receiver-side handling of
// each wire message. Grounded on GoVaultFS server.go's FileServer (loop,
// handleMessage, broadcast, OnPeer) generalized from the teacher's
// two-message gossip protocol to the spec's four distributed operations.
package protocol

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded concurrency pool, backing CLIENT_POOL and
// PROTOCOL_POOL from spec §4.5/§5. Grounded on
// golang.org/x/sync/semaphore, present in the dependency graph of
// _examples/other_examples/manifests/AdityaKrSingh26-PeerVault and
// Skpow1234-PeerVault.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool builds a pool admitting at most size concurrent tasks.
func NewPool(size int) *Pool {
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool's configured concurrency.
func (p *Pool) Size() int { return p.size }

// RunBounded runs each task with at most p.Size() running concurrently and
// returns their results in the same order as tasks, regardless of
// completion order — spec §5: "the aggregate notification preserves the
// iteration order of the targets list."
func RunBounded[T any](p *Pool, tasks []func() T) []T {
	results := make([]T, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		p.sem.Acquire(context.Background(), 1)
		go func(i int, task func() T) {
			defer wg.Done()
			defer p.sem.Release(1)
			results[i] = task()
		}(i, task)
	}

	wg.Wait()
	return results
}

// Submit runs a fire-and-forget task bounded by the pool, without waiting
// for a free slot or for completion: the task waits for its slot on its own
// goroutine. Used by DELETE's per-target sends and RECLAIM's best-effort
// REMOVED notices.
func (p *Pool) Submit(task func()) {
	go func() {
		p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()
}
