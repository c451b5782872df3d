package di

import (
	"testing"
)

type greeter interface{ Greet() string }

type english struct{ name string }

func (e english) Greet() string { return "hello " + e.name }

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "catcher")

	tok := NewToken[greeter]("test:greeter")
	calls := 0
	RegisterToken(c, tok, func(sr ServiceRegistry) greeter {
		calls++
		return english{name: sr.Get("name").(string)}
	})

	if calls != 0 {
		t.Fatalf("factory ran before first use")
	}

	first := GetToken(c, tok)
	second := GetToken(c, tok)

	if first.Greet() != "hello catcher" {
		t.Errorf("Greet() = %q", first.Greet())
	}
	if first != second {
		t.Errorf("expected the same instance on every resolve")
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
}

func TestGet_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	NewContainer().Get("missing")
}

func TestGet_CyclePanics(t *testing.T) {
	c := NewContainer()
	a := NewToken[int]("a")
	b := NewToken[int]("b")
	RegisterToken(c, a, func(sr ServiceRegistry) int { return GetToken(sr, b) })
	RegisterToken(c, b, func(sr ServiceRegistry) int { return GetToken(sr, a) })

	defer func() {
		if recover() == nil {
			t.Error("expected panic for dependency cycle")
		}
	}()
	GetToken(c, a)
}
