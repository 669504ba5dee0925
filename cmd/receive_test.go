package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/n7cw/cwkeyer/internal/receiver"
	"github.com/n7cw/cwkeyer/internal/timing"
)

func newFixedReceiver(t *testing.T, speedWPM, tolerancePercent float64) *receiver.Receiver {
	t.Helper()
	tr, err := timing.NewReceiver(speedWPM, tolerancePercent, false)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	return receiver.New(tr, 0, nil)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token   string
		kind    string
		ms      int64
		wantErr bool
	}{
		{"mark:60", "mark", 60, false},
		{"space:180", "space", 180, false},
		{"bogus", "", 0, true},
		{"mark:notanumber", "", 0, true},
		{"blink:10", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			kind, ms, err := parseToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseToken(%q) expected error, got nil", tt.token)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseToken(%q) unexpected error: %v", tt.token, err)
			}
			if kind != tt.kind || ms != tt.ms {
				t.Errorf("parseToken(%q) = (%q, %d), want (%q, %d)", tt.token, kind, ms, tt.kind, tt.ms)
			}
		})
	}
}

func TestMicroTS(t *testing.T) {
	ts := microTS(1_500_000)
	if ts.Sec != 1 || ts.USec != 500000 {
		t.Errorf("microTS(1500000) = %+v, want {Sec:1 USec:500000}", ts)
	}
}

// TestDecodeStream_DecodesS (20 WPM, tolerance 90%, three dots then a
// generous trailing gap) mirrors the receiver package's own "S" scenario,
// driving it through the CLI token format instead of direct FSM calls.
func TestDecodeStream_DecodesS(t *testing.T) {
	rx := newFixedReceiver(t, 20, 90)

	// dot(60) eoe(60) dot(60) eoe(60) dot(60) then a trailing gap
	// comfortably past dash.Max+additionalDelay+adjustmentDelay (see
	// internal/receiver's S1 scenario) so the letter resolves.
	in := strings.NewReader("mark:60 space:60 mark:60 space:60 mark:60 space:460")

	var out bytes.Buffer
	if err := decodeStream(in, &out, rx); err != nil {
		t.Fatalf("decodeStream: %v", err)
	}

	got := strings.TrimSpace(out.String())
	if !strings.Contains(got, "S") {
		t.Errorf("decodeStream output = %q, want it to contain 'S'", got)
	}
}

func TestDecodeStream_MalformedTokenNoted(t *testing.T) {
	rx := newFixedReceiver(t, 20, 90)
	in := strings.NewReader("garbage mark:60")

	var out bytes.Buffer
	if err := decodeStream(in, &out, rx); err != nil {
		t.Fatalf("decodeStream: %v", err)
	}

	if !strings.Contains(out.String(), "malformed token") {
		t.Errorf("expected malformed-token note in output, got %q", out.String())
	}
}

func TestReceiveCmd_Properties(t *testing.T) {
	if receiveCmd.Use != "receive" {
		t.Errorf("receiveCmd.Use = %q, want %q", receiveCmd.Use, "receive")
	}
	if receiveCmd.Short == "" {
		t.Error("receiveCmd.Short is empty")
	}
}
