package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/flashblocks-catcher/internal/apperror"
)

func TestNew_Burst(t *testing.T) {
	tests := []struct {
		rps       float64
		wantBurst int
	}{
		{rps: 0.5, wantBurst: 1},
		{rps: 4, wantBurst: 1},
		{rps: 25, wantBurst: 7},
	}
	for _, tt := range tests {
		l := New("rpc", tt.rps)
		allowed := 0
		for l.Allow() {
			allowed++
			if allowed > 100 {
				break
			}
		}
		if allowed != tt.wantBurst {
			t.Errorf("rps %.1f: burst = %d, want %d", tt.rps, allowed, tt.wantBurst)
		}
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := NewWithBurst("flash-rpc", 0.001, 1)
	if !l.Allow() {
		t.Fatal("first token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if apperror.GetCode(err) != apperror.CodeRateLimitExceeded {
		t.Fatalf("Wait() = %v, want rate limit error", err)
	}
	if l.Name() != "flash-rpc" {
		t.Errorf("Name() = %q", l.Name())
	}
}
