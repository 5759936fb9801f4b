package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	base := errors.New("boom")
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, OK},
		{"plain", base, SystemError},
		{"wrapped", fmt.Errorf("capture: %w", Wrap(CaptureFailed, base)), CaptureFailed},
		{"joined", fmt.Errorf("%w: %w", errors.New("skip"), Wrap(InvalidTemplate, base)), InvalidTemplate},
	}
	for _, tc := range cases {
		if got := Of(tc.err); got != tc.want {
			t.Errorf("%s: Of = %d, want %d", tc.name, got, tc.want)
		}
	}
	if Wrap(SystemError, nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
	if !errors.Is(Wrap(CaptureFailed, base), base) {
		t.Fatal("wrapped error must unwrap to its cause")
	}
}
