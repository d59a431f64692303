package vaultd

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ogazboiz/sonic-rush/vault"
)

// projectorInterval is how often a watched stream's claimable amount is
// re-interpolated between ledger observations.
const projectorInterval = time.Second

// ProjectionUpdate is one tick of a stream's locally projected claimable
// amount. Projected figures are display-only; write paths echo only
// remotely-confirmed values.
type ProjectionUpdate struct {
	StreamID  uint64    `json:"stream_id"`
	Claimable *big.Int  `json:"-"`
	Amount    string    `json:"claimable"`
	Active    bool      `json:"active"`
	At        time.Time `json:"at"`
}

// StreamView mirrors one stream record plus the contract's own claimable
// figure, and runs a per-view projector that recomputes the interpolated
// claimable amount once per second without touching the network. The
// projector stops when the stream goes inactive or the view is released.
type StreamView struct {
	id        uint64
	stream    *Subscription[vault.Stream]
	claimable *Subscription[*big.Int]
	log       *slog.Logger
	interval  time.Duration

	cancel context.CancelFunc

	mu        sync.Mutex
	refs      int
	watchers  map[chan ProjectionUpdate]struct{}
	projected *big.Int
	updatedAt time.Time
}

// OpenStream returns a view of the given stream, creating its subscriptions
// and projector on first use. Concurrent watchers share one view; each call
// must be paired with ReleaseStream.
func (m *Mirror) OpenStream(ctx context.Context, id uint64) (*StreamView, error) {
	m.mu.Lock()
	if view, ok := m.views[id]; ok {
		view.mu.Lock()
		view.refs++
		view.mu.Unlock()
		m.mu.Unlock()
		return view, nil
	}
	streamID := new(big.Int).SetUint64(id)
	view := &StreamView{
		id: id,
		stream: NewSubscription(fmt.Sprintf("stream_%d", id), func(ctx context.Context) (vault.Stream, error) {
			return m.client.Stream(ctx, streamID)
		}, m.metrics),
		claimable: NewSubscription(fmt.Sprintf("stream_%d_claimable", id), func(ctx context.Context) (*big.Int, error) {
			return m.client.ClaimableBalance(ctx, streamID)
		}, m.metrics),
		log:       m.log,
		interval:  projectorInterval,
		watchers:  make(map[chan ProjectionUpdate]struct{}),
		projected: new(big.Int),
		refs:      1,
	}
	m.views[id] = view
	m.mu.Unlock()

	if _, err := view.stream.Refetch(ctx); err != nil {
		m.mu.Lock()
		delete(m.views, id)
		m.mu.Unlock()
		return nil, err
	}
	refetch(ctx, m.log, view.claimable)

	runCtx, cancel := context.WithCancel(context.Background())
	view.cancel = cancel
	go view.run(runCtx)
	return view, nil
}

// ReleaseStream drops one reference to a stream view, tearing down its
// projector when the last watcher leaves.
func (m *Mirror) ReleaseStream(id uint64) {
	m.mu.Lock()
	view, ok := m.views[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	view.mu.Lock()
	view.refs--
	last := view.refs <= 0
	view.mu.Unlock()
	if last {
		delete(m.views, id)
	}
	m.mu.Unlock()
	if last && view.cancel != nil {
		view.cancel()
	}
}

// Refresh refetches the view's ledger quantities after a coordinated
// refresh; the fresh snapshot overwrites any locally projected value.
func (v *StreamView) Refresh(ctx context.Context) {
	refetch(ctx, v.log, v.stream)
	refetch(ctx, v.log, v.claimable)
}

// Stream returns the last-known stream record.
func (v *StreamView) Stream() (vault.Stream, bool) {
	return v.stream.Last()
}

// LedgerClaimable returns the contract's own claimable figure.
func (v *StreamView) LedgerClaimable() (*big.Int, bool) {
	return v.claimable.Last()
}

// Projected returns the latest locally interpolated claimable amount.
func (v *StreamView) Projected() (*big.Int, time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.projected), v.updatedAt
}

// Watch registers a coalescing channel receiving projection ticks. The
// returned stop function must be called when the watcher goes away.
func (v *StreamView) Watch() (<-chan ProjectionUpdate, func()) {
	ch := make(chan ProjectionUpdate, 1)
	v.mu.Lock()
	v.watchers[ch] = struct{}{}
	v.mu.Unlock()
	return ch, func() {
		v.mu.Lock()
		delete(v.watchers, ch)
		v.mu.Unlock()
	}
}

func (v *StreamView) run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stream, ok := v.stream.Last()
			if !ok {
				continue
			}
			update := ProjectionUpdate{
				StreamID: v.id,
				Active:   stream.IsActive,
				At:       now,
			}
			update.Claimable = vault.ClaimableAt(stream, now)
			update.Amount = update.Claimable.String()

			v.mu.Lock()
			v.projected.Set(update.Claimable)
			v.updatedAt = now
			watchers := make([]chan ProjectionUpdate, 0, len(v.watchers))
			for ch := range v.watchers {
				watchers = append(watchers, ch)
			}
			v.mu.Unlock()

			for _, ch := range watchers {
				select {
				case ch <- update:
				default:
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- update:
					default:
					}
				}
			}
			if !stream.IsActive {
				// Terminal records are immutable; stop interpolating.
				return
			}
		}
	}
}
