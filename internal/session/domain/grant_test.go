package domain

import (
	"errors"
	"math/big"
	"testing"

	"sessiongate/internal/evm"
)

func validGrant() *SessionGrant {
	return &SessionGrant{
		SessionKey:      evm.BytesToAddress([]byte{0x01}),
		Asset:           evm.ZeroAddress,
		Account:         evm.BytesToAddress([]byte{0x02}),
		ValidAfter:      1000,
		ValidUntil:      2000,
		LimitAmount:     big.NewInt(500),
		LimitUsed:       big.NewInt(0),
		RefreshInterval: 60,
	}
}

func TestValidate(t *testing.T) {
	if err := validGrant().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_WindowInverted(t *testing.T) {
	g := validGrant()
	g.ValidAfter = 3000
	if err := g.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Validate = %v, want ErrInvalidWindow", err)
	}
}

func TestValidate_PointWindow(t *testing.T) {
	g := validGrant()
	g.ValidAfter = 2000
	if err := g.Validate(); err != nil {
		t.Errorf("validAfter == validUntil should be accepted, got %v", err)
	}
}

func TestValidate_Limits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SessionGrant)
	}{
		{"nil limit", func(g *SessionGrant) { g.LimitAmount = nil }},
		{"negative limit", func(g *SessionGrant) { g.LimitAmount = big.NewInt(-1) }},
		{"negative used", func(g *SessionGrant) { g.LimitUsed = big.NewInt(-1) }},
		{"used above limit", func(g *SessionGrant) { g.LimitUsed = big.NewInt(501) }},
		{"negative refresh", func(g *SessionGrant) { g.RefreshInterval = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGrant()
			tt.mutate(g)
			if err := g.Validate(); !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("Validate = %v, want ErrInvalidLimit", err)
			}
		})
	}
}

func TestValidate_NilUsedDefaultsToZero(t *testing.T) {
	g := validGrant()
	g.LimitUsed = nil
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if g.LimitUsed == nil || g.LimitUsed.Sign() != 0 {
		t.Errorf("LimitUsed = %v, want 0", g.LimitUsed)
	}
}

func TestEffectiveUsed(t *testing.T) {
	g := validGrant()
	g.LimitUsed = big.NewInt(300)
	g.LastUsed = 1000
	g.RefreshInterval = 60

	if got := g.EffectiveUsed(1030); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("inside window: EffectiveUsed = %s, want 300", got)
	}
	if got := g.EffectiveUsed(1060); got.Sign() != 0 {
		t.Errorf("at boundary: EffectiveUsed = %s, want 0", got)
	}
	if got := g.EffectiveUsed(5000); got.Sign() != 0 {
		t.Errorf("after window: EffectiveUsed = %s, want 0", got)
	}
}

func TestEffectiveUsed_NoRefreshInterval(t *testing.T) {
	g := validGrant()
	g.LimitUsed = big.NewInt(300)
	g.LastUsed = 1000
	g.RefreshInterval = 0

	if got := g.EffectiveUsed(1 << 40); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("EffectiveUsed = %s, want 300; zero interval never resets", got)
	}
}

func TestEffectiveUsed_DoesNotMutate(t *testing.T) {
	g := validGrant()
	g.LimitUsed = big.NewInt(300)
	g.LastUsed = 1000

	got := g.EffectiveUsed(5000)
	got.SetInt64(99)
	if g.LimitUsed.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("LimitUsed mutated to %s", g.LimitUsed)
	}
}

func TestClone(t *testing.T) {
	g := validGrant()
	g.LimitUsed = big.NewInt(100)

	c := g.Clone()
	c.LimitUsed.SetInt64(400)
	c.LastUsed = 9999

	if g.LimitUsed.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("LimitUsed = %s, clone should not share big.Int state", g.LimitUsed)
	}
	if g.LastUsed == 9999 {
		t.Error("LastUsed leaked through clone")
	}
	if (*SessionGrant)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestDigest(t *testing.T) {
	chainID := big.NewInt(11155111)
	g := validGrant()

	base := g.Digest(chainID)
	if base != g.Digest(chainID) {
		t.Error("digest should be deterministic")
	}

	// Identity and window fields change the digest.
	mut := validGrant()
	mut.LimitAmount = big.NewInt(501)
	if mut.Digest(chainID) == base {
		t.Error("limit change should change the digest")
	}
	if g.Digest(big.NewInt(1)) == base {
		t.Error("chain id change should change the digest")
	}

	// Usage fields do not.
	used := validGrant()
	used.LimitUsed = big.NewInt(499)
	used.LastUsed = 1500
	if used.Digest(chainID) != base {
		t.Error("usage fields should not affect the digest")
	}
}
