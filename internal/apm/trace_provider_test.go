package apm

import (
	"context"
	"testing"

	"github.com/fd1az/mev-bundler/internal/logger"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{name: "empty", in: "", want: map[string]string{}},
		{name: "single", in: "x-honeycomb-team=abc", want: map[string]string{"x-honeycomb-team": "abc"}},
		{name: "multiple_with_spaces", in: "a=1, b=2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "malformed_skipped", in: "novalue,c=3", want: map[string]string{"c": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHeaders(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseHeaders(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNewTraceProvider_EmptyIsNoop(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), Config{Provider: EmptyProvider}, logger.NewDiscard())
	if err != nil {
		t.Fatalf("NewTraceProvider: %v", err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
