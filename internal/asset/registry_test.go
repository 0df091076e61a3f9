package asset

import "testing"

func TestRegistry_ClassOf(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		ref  string
		want Class
	}{
		{name: "stable_by_symbol", ref: "USDC", want: ClassStable},
		{name: "major_lowercase", ref: "sol", want: ClassMajor},
		{name: "major_by_mint", ref: MintWETH.String(), want: ClassMajor},
		{name: "longtail", ref: "BONK", want: ClassLongTail},
		{name: "unknown_defaults_longtail", ref: "WIF", want: ClassLongTail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ClassOf(tt.ref); got != tt.want {
				t.Errorf("ClassOf(%s) = %s, want %s", tt.ref, got, tt.want)
			}
		})
	}
}

func TestRegistry_MintsSorted(t *testing.T) {
	r := DefaultRegistry()
	mints := r.Mints()

	if len(mints) != r.Count() {
		t.Fatalf("len(Mints()) = %d, want %d", len(mints), r.Count())
	}
	// BONK sorts first
	if !mints[0].Equals(MintBONK) {
		t.Errorf("Mints()[0] = %s, want %s", mints[0], MintBONK)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate symbol")
		}
	}()
	r := DefaultRegistry()
	r.Register(New("usdc", MintUSDT, 6, ClassStable))
}
