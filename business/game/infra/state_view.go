package infra

import (
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// StateView is the JSON shape of GET /v1/state.
type StateView struct {
	Score       int                    `json:"score"`
	Caught      map[string]int         `json:"caught"`
	Race        *RaceView              `json:"race,omitempty"`
	History     []RaceView             `json:"history"`
	Connections []ConnectionView       `json:"connections"`
	Stats       map[string]CadenceView `json:"stats"`
	Speedup     float64                `json:"speedup"`
	Wallet      WalletView             `json:"wallet"`
	Submitting  bool                   `json:"submitting"`
	LastError   string                 `json:"last_error,omitempty"`
	Frame       uint64                 `json:"frame"`
	Timestamp   time.Time              `json:"timestamp"`
}

// RaceView is one confirmation race.
type RaceView struct {
	ID         string                `json:"id"`
	TxID       string                `json:"tx_id"`
	SubmitTime time.Time             `json:"submit_time"`
	Terminal   bool                  `json:"terminal"`
	Speedup    float64               `json:"speedup,omitempty"`
	Cadences   map[string]ResultView `json:"cadences"`
}

// ResultView is the race state of one cadence.
type ResultView struct {
	Confirmed bool   `json:"confirmed"`
	TimedOut  bool   `json:"timed_out"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// ConnectionView is the status of one block source.
type ConnectionView struct {
	Cadence       string    `json:"cadence"`
	State         string    `json:"state"`
	LastBlock     uint64    `json:"last_block"`
	LastUpdate    time.Time `json:"last_update"`
	Reconnects    int       `json:"reconnects"`
	UsingFallback bool      `json:"using_fallback"`
}

// CadenceView holds rolling statistics of one cadence.
type CadenceView struct {
	BlocksPerMinute float64 `json:"blocks_per_minute"`
	TxPerMinute     float64 `json:"tx_per_minute"`
	AvgLatencyMS    int64   `json:"avg_latency_ms"`
	Confirmations   int     `json:"confirmations"`
}

// WalletView is the submission wallet.
type WalletView struct {
	Configured bool   `json:"configured"`
	Address    string `json:"address,omitempty"`
	BalanceETH string `json:"balance_eth,omitempty"`
}

// NewStateView converts a snapshot.
func NewStateView(st domain.GameState) StateView {
	v := StateView{
		Score:       st.Score,
		Caught:      make(map[string]int, chain.NumCadences),
		History:     make([]RaceView, 0, len(st.History)),
		Connections: make([]ConnectionView, 0, chain.NumCadences),
		Stats:       make(map[string]CadenceView, chain.NumCadences),
		Speedup:     st.Stats.Speedup,
		Submitting:  st.Submitting,
		LastError:   st.LastError,
		Frame:       st.Frame,
		Timestamp:   st.Now,
	}

	for _, c := range chain.Cadences {
		v.Caught[c.String()] = st.Caught[c]

		cs := st.Stats.Cadences[c]
		v.Stats[c.String()] = CadenceView{
			BlocksPerMinute: cs.BlocksPerMinute,
			TxPerMinute:     cs.TxPerMinute,
			AvgLatencyMS:    cs.AvgLatency.Milliseconds(),
			Confirmations:   cs.Confirmations,
		}

		conn := st.Connections[c]
		v.Connections = append(v.Connections, ConnectionView{
			Cadence:       c.String(),
			State:         string(conn.State),
			LastBlock:     conn.LastBlock,
			LastUpdate:    conn.LastUpdate,
			Reconnects:    conn.Reconnects,
			UsingFallback: conn.UsingFallback,
		})
	}

	if st.HasRace {
		rv := newRaceView(st.Race)
		v.Race = &rv
	}
	for _, r := range st.History {
		v.History = append(v.History, newRaceView(r))
	}

	if st.Wallet.Configured {
		v.Wallet = WalletView{
			Configured: true,
			Address:    st.Wallet.Address.Hex(),
			BalanceETH: st.Wallet.Balance.String(),
		}
	}
	return v
}

func newRaceView(r domain.Race) RaceView {
	v := RaceView{
		ID:         r.ID,
		TxID:       r.TxID.String(),
		SubmitTime: r.SubmitTime,
		Terminal:   r.Terminal(),
		Speedup:    r.Speedup(),
		Cadences:   make(map[string]ResultView, chain.NumCadences),
	}
	for _, c := range chain.Cadences {
		res := r.Results[c]
		rv := ResultView{Confirmed: res.Confirmed, TimedOut: res.TimedOut}
		if res.Confirmed {
			ms := res.BestLatency.Milliseconds()
			rv.LatencyMS = &ms
			rv.Channel = res.Winner.String()
		}
		v.Cadences[c.String()] = rv
	}
	return v
}
