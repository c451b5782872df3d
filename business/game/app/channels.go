package app

import (
	"fmt"
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/internal/config"
)

// ChannelSpec declares one confirmation detection channel. Push channels
// have no period: they are fed by ingestion.
type ChannelSpec struct {
	Cadence   chain.Cadence
	Transport domain.Channel
	Period    time.Duration
	Timeout   time.Duration
}

func (s ChannelSpec) String() string {
	return fmt.Sprintf("%s/%s", s.Cadence, s.Transport)
}

// DefaultChannels returns push and direct-query channels for both cadences.
func DefaultChannels(cfg config.RaceConfig) []ChannelSpec {
	return []ChannelSpec{
		{Cadence: chain.Flash, Transport: domain.ChannelPush, Timeout: cfg.Flash.Timeout},
		{Cadence: chain.Standard, Transport: domain.ChannelPush, Timeout: cfg.Standard.Timeout},
		{Cadence: chain.Flash, Transport: domain.ChannelDirectQuery, Period: cfg.Flash.PollInterval, Timeout: cfg.Flash.Timeout},
		{Cadence: chain.Standard, Transport: domain.ChannelDirectQuery, Period: cfg.Standard.PollInterval, Timeout: cfg.Standard.Timeout},
	}
}

func validateChannels(specs []ChannelSpec) error {
	var covered [chain.NumCadences]bool
	for _, s := range specs {
		if !s.Cadence.Valid() {
			return fmt.Errorf("channel %s: unknown cadence", s)
		}
		if s.Timeout <= 0 {
			return fmt.Errorf("channel %s: timeout must be positive", s)
		}
		switch s.Transport {
		case domain.ChannelPush:
		case domain.ChannelDirectQuery:
			if s.Period <= 0 || s.Period >= s.Timeout {
				return fmt.Errorf("channel %s: period must be positive and below the timeout", s)
			}
		default:
			return fmt.Errorf("channel %s: unknown transport", s)
		}
		covered[s.Cadence] = true
	}
	for _, c := range chain.Cadences {
		if !covered[c] {
			return fmt.Errorf("no channel for cadence %s", c)
		}
	}
	return nil
}

// raceTimeouts is the longest channel timeout of each cadence.
func raceTimeouts(specs []ChannelSpec) [chain.NumCadences]time.Duration {
	var out [chain.NumCadences]time.Duration
	for _, s := range specs {
		out[s.Cadence] = max(out[s.Cadence], s.Timeout)
	}
	return out
}
