package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
)

type fakeGateway struct {
	*fakeReceipts

	subs [chain.NumCadences]chan chain.BlockUpdate

	mu        sync.Mutex
	submitTx  chain.TxID
	submitErr error
	submits   int
	wallet    chain.WalletInfo
	walletErr error
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{fakeReceipts: newFakeReceipts()}
	for _, c := range chain.Cadences {
		g.subs[c] = make(chan chain.BlockUpdate, 8)
	}
	return g
}

func (g *fakeGateway) LatestBlock(ctx context.Context, cadence chain.Cadence) (*chain.Block, error) {
	return nil, apperror.New(apperror.CodeBlockNotFound)
}

func (g *fakeGateway) SubscribeBlocks(ctx context.Context, cadence chain.Cadence) (<-chan chain.BlockUpdate, error) {
	return g.subs[cadence], nil
}

func (g *fakeGateway) SubmitTransaction(ctx context.Context, to common.Address, valueETH decimal.Decimal) (chain.TxID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits++
	return g.submitTx, g.submitErr
}

func (g *fakeGateway) Wallet(ctx context.Context) (chain.WalletInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wallet, g.walletErr
}

func (g *fakeGateway) Status(cadence chain.Cadence) chain.ConnectionStatus {
	return chain.ConnectionStatus{Cadence: cadence, State: chain.StateConnected}
}

type fakeReporter struct {
	mu      sync.Mutex
	updates int
	last    domain.GameState
	errs    []error
	started bool
	stopped bool
}

func (r *fakeReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *fakeReporter) Update(state domain.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.last = state
}

func (r *fakeReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func newTestSession(t *testing.T, gw *fakeGateway, clk clock.Clock) (*Session, *fakeReporter) {
	t.Helper()
	coord, err := NewCoordinator(gw, CoordinatorConfig{Channels: DefaultChannels(defaultRaceConfig())}, &mockLogger{}, WithClock(clk))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	cfg := DefaultSessionConfig()
	cfg.Seed = 1
	cfg.Recipient = common.HexToAddress("0x4200000000000000000000000000000000000006")

	rep := &fakeReporter{}
	s, err := NewSession(gw, coord, rep, cfg, &mockLogger{}, WithClock(clk))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, rep
}

func TestSession_SubmitFailureArmsNoRace(t *testing.T) {
	gw := newFakeGateway()
	gw.submitErr = apperror.New(apperror.CodeWalletNotConfigured)
	s, rep := newTestSession(t, gw, clock.NewMock())

	tx, err := s.Submit(context.Background())
	if tx != "" {
		t.Errorf("tx = %q, want empty", tx)
	}
	if apperror.GetCode(err) != apperror.CodeTxSubmitFailed {
		t.Fatalf("error = %v, want TX_SUBMIT_FAILED", err)
	}
	if !errors.Is(err, apperror.New(apperror.CodeWalletNotConfigured)) {
		t.Errorf("error does not wrap the gateway cause: %v", err)
	}

	if _, ok := s.coord.Race(); ok {
		t.Error("race armed after failed submission")
	}
	if len(rep.errs) != 1 {
		t.Errorf("reported %d errors, want 1", len(rep.errs))
	}
	st := s.Snapshot()
	if st.HasRace || st.Submitting || !strings.Contains(st.LastError, "no wallet") {
		t.Errorf("snapshot = race:%v submitting:%v error:%q", st.HasRace, st.Submitting, st.LastError)
	}
}

func TestSession_PushConfirmationThroughIngestion(t *testing.T) {
	clk := clock.NewMock()
	gw := newFakeGateway()
	gw.submitTx = "0xFEED"
	gw.wallet = chain.WalletInfo{Address: common.HexToAddress("0x01"), Balance: decimal.RequireFromString("1.5")}
	s, rep := newTestSession(t, gw, clk)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tx, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	clk.Add(150 * time.Millisecond)
	gw.subs[chain.Flash] <- chain.BlockUpdate{
		Block: &chain.Block{Cadence: chain.Flash, Number: 10, Transactions: []chain.TxID{"0xfeed"}},
		Reset: true,
	}

	eventually(t, func() bool {
		r, _ := s.coord.Race()
		return r.Results[chain.Flash].Confirmed
	})

	st := s.Snapshot()
	if !st.ActiveTx().Equal(tx) {
		t.Errorf("active tx = %q, want %q", st.ActiveTx(), tx)
	}
	if lat, ok := st.BestLatency(chain.Flash); !ok || lat != 150*time.Millisecond {
		t.Errorf("flash latency = %v, %v, want 150ms", lat, ok)
	}
	if st.Race.Results[chain.Flash].Winner != domain.ChannelPush {
		t.Errorf("winner = %v, want push", st.Race.Results[chain.Flash].Winner)
	}
	if w := st.Windows[chain.Flash]; len(w) != 1 || !w[0].ContainsUserTx {
		t.Errorf("flash window = %+v", w)
	}
	if len(st.Arena.Blocks) != 1 || !st.Arena.Blocks[0].UserTx {
		t.Errorf("arena blocks = %+v", st.Arena.Blocks)
	}
	if n := len(st.Events); n < 2 || st.Events[0].Kind != domain.RaceStarted || st.Events[n-1].Kind != domain.ConfirmationUpdated {
		t.Errorf("events = %+v", st.Events)
	}

	eventually(t, func() bool { return s.Snapshot().Wallet.Configured })
	if bal := s.Snapshot().Wallet.Balance; !bal.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("wallet balance = %s", bal)
	}

	rep.mu.Lock()
	started, updates := rep.started, rep.updates
	rep.mu.Unlock()
	if !started || updates == 0 {
		t.Errorf("reporter started=%v updates=%d", started, updates)
	}
}

func TestSession_StatsRefresh(t *testing.T) {
	clk := clock.NewMock()
	gw := newFakeGateway()
	gw.walletErr = apperror.New(apperror.CodeWalletNotConfigured)
	s, _ := newTestSession(t, gw, clk)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	gw.subs[chain.Standard] <- chain.BlockUpdate{Block: &chain.Block{Cadence: chain.Standard, Number: 1, Transactions: []chain.TxID{"0x01", "0x02"}}}
	eventually(t, func() bool { return len(s.Snapshot().Windows[chain.Standard]) == 1 })

	clk.Add(5 * time.Second)
	eventually(t, func() bool { return !s.Snapshot().Stats.UpdatedAt.IsZero() })

	st := s.Snapshot().Stats.Cadences[chain.Standard]
	if st.BlocksPerMinute != 1 || st.TxPerMinute != 2 {
		t.Errorf("standard throughput = %v blocks/min, %v tx/min", st.BlocksPerMinute, st.TxPerMinute)
	}
	if s.Snapshot().Wallet.Configured {
		t.Error("wallet shown as configured without a key")
	}
}

func TestSession_StartTwice(t *testing.T) {
	s, _ := newTestSession(t, newFakeGateway(), clock.NewMock())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); apperror.GetCode(err) != apperror.CodeInvalidState {
		t.Errorf("second Start = %v", err)
	}
}

func TestSession_MovePaddle(t *testing.T) {
	s, _ := newTestSession(t, newFakeGateway(), clock.NewMock())
	before := s.Snapshot().Arena.PaddleX
	s.MovePaddle(3)
	if after := s.Snapshot().Arena.PaddleX; after != before+3 {
		t.Errorf("PaddleX = %d, want %d", after, before+3)
	}
}
