package engine

import (
	"context"

	"github.com/chainwatch/btcmonitor/monitor"
	"github.com/chainwatch/btcmonitor/store"
)

// Tick implements MonitorApi's tick(): it reconciles the store against the
// indexer's current best chain — resolving any reorg first, then replaying
// forward one height at a time — exactly the two-phase shape spec.md §4.5
// and §5 describe. Only one Tick runs at a time; a concurrent call returns
// ErrBusy immediately rather than blocking, per spec.md §5's single-writer
// model.
func (m *Monitor) Tick(ctx context.Context) error {
	if !m.tickMu.TryLock() {
		return monitor.ErrBusy
	}
	defer m.tickMu.Unlock()

	var fault struct {
		depth, window uint32
		set           bool
	}
	err := m.store.View(func(stx *store.Tx) error {
		fault.depth, fault.window, fault.set = stx.DeepReorgFault()
		return nil
	})
	if err != nil {
		return monitor.WrapError(monitor.ErrKindStore, err)
	}
	if fault.set {
		// A prior tick already recorded a reorg deeper than the window and
		// emitted the one IndexerError news item spec.md §8 property 7
		// promises. Every subsequent Tick fast-fails without touching the
		// indexer until an operator widens ReorgWindow and calls
		// ClearDeepReorgFault.
		return deepReorgError(fault.depth, fault.window)
	}

	bestHeight, err := m.bestHeightWithRetry(ctx)
	if err != nil {
		return monitor.WrapError(monitor.ErrKindIndexerTransient, err)
	}

	ancestor, priorTop, divergent, err := m.findCommonAncestor(bestHeight)
	if err != nil {
		return monitor.WrapError(monitor.ErrKindIndexerTransient, err)
	}

	if divergent {
		depth := priorTop - ancestor
		if depth > m.cfg.ReorgWindow {
			faultErr := m.store.Update(func(stx *store.Tx) error {
				if err := m.emitIndexerError(stx, bestHeight, monitor.DeepReorg, depth,
					"reorg depth exceeds configured reorg window"); err != nil {
					return err
				}
				return stx.SetDeepReorgFault(depth, m.cfg.ReorgWindow)
			})
			if faultErr != nil {
				return monitor.WrapError(monitor.ErrKindStore, faultErr)
			}
			return deepReorgError(depth, m.cfg.ReorgWindow)
		}

		if err := m.orphanAbove(ancestor, bestHeight); err != nil {
			return monitor.WrapError(monitor.ErrKindStore, err)
		}
	}

	var cursor uint64
	err = m.store.View(func(stx *store.Tx) error {
		cursor = stx.Cursor()
		return nil
	})
	if err != nil {
		return monitor.WrapError(monitor.ErrKindStore, err)
	}

	window := m.chainWindow()

	for h := uint32(cursor) + 1; h <= bestHeight; h++ {
		select {
		case <-ctx.Done():
			return monitor.ErrInterrupted
		default:
		}

		block, err := m.idx.GetBlock(h)
		if err != nil {
			return monitor.WrapError(monitor.ErrKindIndexerTransient, err)
		}

		isReplay := divergent && h <= priorTop

		err = m.store.Update(func(stx *store.Tx) error {
			if err := m.detectBlock(stx, block, h, isReplay); err != nil {
				return err
			}
			if err := m.advanceConfirmations(stx, h); err != nil {
				return err
			}
			if err := stx.PutChainHash(h, block.Hash); err != nil {
				return err
			}
			if h > window {
				if err := stx.PruneChainBelow(h - window); err != nil {
					return err
				}
			}
			if h > m.cfg.ReorgWindow {
				if err := stx.PruneNewsOlderThan(uint64(h), m.cfg.ReorgWindow); err != nil {
					return err
				}
			}
			return stx.SetCursor(uint64(h))
		})
		if err != nil {
			return monitor.WrapError(monitor.ErrKindStore, err)
		}
	}

	return nil
}

// bestHeightWithRetry calls the indexer's BestHeight with bounded backoff,
// per spec.md §5, using the rate limiter to pace attempts rather than a
// fixed sleep. ctx cancellation aborts the retry loop early.
func (m *Monitor) bestHeightWithRetry(ctx context.Context) (uint32, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.IndexerRetries; attempt++ {
		if attempt > 0 {
			if err := m.limiter.Wait(ctx); err != nil {
				return 0, lastErr
			}
		}
		height, err := m.idx.BestHeight()
		if err == nil {
			return height, nil
		}
		lastErr = err
		log.Warnf("indexer BestHeight attempt %d/%d failed: %v", attempt+1, m.cfg.IndexerRetries, err)
	}
	return 0, lastErr
}
