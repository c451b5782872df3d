package ethereum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/goleak"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// idle keep-alive connections to httptest servers
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fetchResult struct {
	block *domain.Block
	err   error
}

// scriptedFetcher replays results in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	i       int
	fetched chan struct{}
}

func newScriptedFetcher(results ...fetchResult) *scriptedFetcher {
	return &scriptedFetcher{results: results, fetched: make(chan struct{}, 64)}
}

func (f *scriptedFetcher) LatestBlock(ctx context.Context, cadence domain.Cadence) (*domain.Block, error) {
	f.mu.Lock()
	r := f.results[min(f.i, len(f.results)-1)]
	f.i++
	f.mu.Unlock()

	f.fetched <- struct{}{}
	return r.block, r.err
}

func (f *scriptedFetcher) waitFetch(t *testing.T) {
	t.Helper()
	select {
	case <-f.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
	}
}

func recvUpdate(t *testing.T, ch <-chan domain.BlockUpdate) domain.BlockUpdate {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return domain.BlockUpdate{}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func stdBlock(n uint64) *domain.Block {
	return &domain.Block{Cadence: domain.Standard, Number: n, Hash: hashN(byte(n))}
}

func TestPoller_EmitsNewHeadsOnly(t *testing.T) {
	mock := clock.NewMock()
	fetcher := newScriptedFetcher(
		fetchResult{block: stdBlock(1)},
		fetchResult{block: stdBlock(1)},
		fetchResult{err: errors.New("timeout")},
		fetchResult{block: stdBlock(2)},
	)

	cfg := DefaultPollerConfig()
	p, err := NewPoller(cfg, fetcher, &mockLogger{}, WithClock(mock))
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := p.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	fetcher.waitFetch(t)
	u := recvUpdate(t, updates)
	if !u.Reset || u.Block.Number != 1 {
		t.Errorf("first update = %+v, want reset block 1", u)
	}

	// Unchanged head.
	mock.Add(cfg.Interval)
	fetcher.waitFetch(t)

	// Failed poll.
	mock.Add(cfg.Interval)
	fetcher.waitFetch(t)
	eventually(t, func() bool { return p.Status().State == domain.StateReconnecting })

	mock.Add(cfg.Interval)
	fetcher.waitFetch(t)
	u = recvUpdate(t, updates)
	if u.Reset || u.Block.Number != 2 {
		t.Errorf("second update = %+v, want block 2 without reset", u)
	}

	eventually(t, func() bool {
		st := p.Status()
		return st.State == domain.StateConnected && st.LastBlock == 2 && st.Cadence == domain.Standard
	})

	cancel()
	for range updates {
	}
	if st := p.Status().State; st != domain.StateDisconnected {
		t.Errorf("state after cancel = %s", st)
	}
}

func TestPoller_DoubleSubscribe(t *testing.T) {
	p, err := NewPoller(DefaultPollerConfig(), newScriptedFetcher(fetchResult{block: stdBlock(1)}), &mockLogger{}, WithClock(clock.NewMock()))
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := p.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := p.Subscribe(ctx); err == nil {
		t.Error("second Subscribe should fail")
	}

	cancel()
	for range updates {
	}
}

func TestNewPoller_RejectsZeroInterval(t *testing.T) {
	cfg := DefaultPollerConfig()
	cfg.Interval = 0
	if _, err := NewPoller(cfg, newScriptedFetcher(), &mockLogger{}); err == nil {
		t.Error("expected error")
	}
}
