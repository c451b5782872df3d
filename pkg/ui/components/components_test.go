package components

import (
	"regexp"
	"strings"
	"testing"
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

var sgr = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string {
	return sgr.ReplaceAllString(s, "")
}

func TestRenderArena(t *testing.T) {
	snap := domain.ArenaSnapshot{
		Width: 20, Height: 5, PaddleX: 4, PaddleWidth: 6,
		Blocks: []domain.FallingBlock{
			{Cadence: chain.Standard, X: 1, Y: 0, Width: 3},
			{Cadence: chain.Flash, X: 10, Y: 2.5, Width: 2},
			{Cadence: chain.Flash, X: 0, Y: -1, Width: 2},
		},
	}

	rows := strings.Split(plain(RenderArena(snap)), "\n")
	if len(rows) != 5 {
		t.Fatalf("rendered %d rows, want 5", len(rows))
	}
	want := []string{
		" ███                ",
		"                    ",
		"          ▓▓        ",
		"                    ",
		"    ▀▀▀▀▀▀          ",
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestRenderRace(t *testing.T) {
	var rules domain.RaceRules
	rules.Timeouts[chain.Standard] = time.Minute
	rules.Timeouts[chain.Flash] = 30 * time.Second
	start := time.Unix(100, 0)
	race := domain.NewRace("r", "0x1234567890abcdef1234567890abcdef", start, rules)
	race.Record(race.TxID, chain.Flash, 150*time.Millisecond, domain.ChannelPush)
	race.MarkTimedOut(chain.Standard)

	out := plain(RenderRace(race, true, start.Add(time.Second)))
	for _, s := range []string{"150ms via push", "no confirmation in 1m0s", "waiting for both"} {
		if !strings.Contains(out, s) {
			t.Errorf("race panel missing %q:\n%s", s, out)
		}
	}

	if out := plain(RenderRace(domain.Race{}, false, start)); !strings.Contains(out, "press t") {
		t.Errorf("idle panel = %q", out)
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{150 * time.Millisecond, "150ms"},
		{1800 * time.Millisecond, "1800ms"},
		{12 * time.Second, "12.0s"},
	}
	for _, tt := range tests {
		if got := FormatLatency(tt.in); got != tt.want {
			t.Errorf("FormatLatency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
