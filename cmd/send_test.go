package cmd

import (
	"testing"

	"github.com/n7cw/cwkeyer/internal/audiosink"
	"github.com/n7cw/cwkeyer/internal/timing"
	"github.com/n7cw/cwkeyer/internal/tone"
	"github.com/n7cw/cwkeyer/internal/tonequeue"
)

func drainTones(t *testing.T, q *tonequeue.Queue) []tone.Tone {
	t.Helper()
	var out []tone.Tone
	for {
		r := q.Dequeue()
		if r.Idle {
			return out
		}
		out = append(out, r.Tone)
		q.MarkCurrentDone()
	}
}

func TestEnqueueText_SingleLetterSymbolSpacing(t *testing.T) {
	tgen, err := timing.NewGenerator(20, 0, 50)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	q, err := tonequeue.New(64)
	if err != nil {
		t.Fatalf("tonequeue.New: %v", err)
	}

	enqueueText(q, tgen, "N", 800) // N = -.

	tones := drainTones(t, q)
	if len(tones) != 3 {
		t.Fatalf("got %d tones, want 3 (dash, gap, dot)", len(tones))
	}
	if tones[0].DurationUS != int32(tgen.DashIdealUS) || tones[0].IsSilent() {
		t.Errorf("tone[0] = %+v, want dash tone", tones[0])
	}
	if !tones[1].IsSilent() || tones[1].DurationUS != int32(tgen.EOEDelayUS) {
		t.Errorf("tone[1] = %+v, want inter-element rest", tones[1])
	}
	if tones[2].DurationUS != int32(tgen.DotIdealUS) || tones[2].IsSilent() {
		t.Errorf("tone[2] = %+v, want dot tone", tones[2])
	}
}

func TestEnqueueText_WordBoundaryUsesEOWDelay(t *testing.T) {
	tgen, err := timing.NewGenerator(20, 0, 50)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	q, err := tonequeue.New(64)
	if err != nil {
		t.Fatalf("tonequeue.New: %v", err)
	}

	enqueueText(q, tgen, "E E", 800) // E = . , word gap, E = .

	tones := drainTones(t, q)
	// dot, EOW rest, dot
	if len(tones) != 3 {
		t.Fatalf("got %d tones, want 3", len(tones))
	}
	if !tones[1].IsSilent() || tones[1].DurationUS != int32(tgen.EOWDelayUS) {
		t.Errorf("tone[1] = %+v, want inter-word rest of %d us", tones[1], tgen.EOWDelayUS)
	}
}

func TestEnqueueText_CharacterBoundaryUsesEOCDelay(t *testing.T) {
	tgen, err := timing.NewGenerator(20, 0, 50)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	q, err := tonequeue.New(64)
	if err != nil {
		t.Fatalf("tonequeue.New: %v", err)
	}

	enqueueText(q, tgen, "EE", 800) // E, E, no word gap

	tones := drainTones(t, q)
	if len(tones) != 3 {
		t.Fatalf("got %d tones, want 3", len(tones))
	}
	if !tones[1].IsSilent() || tones[1].DurationUS != int32(tgen.EOCDelayUS) {
		t.Errorf("tone[1] = %+v, want inter-character rest of %d us", tones[1], tgen.EOCDelayUS)
	}
}

func TestNewSink_DefaultsToNull(t *testing.T) {
	s, err := newSink(audiosink.KindNull, -1)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if s == nil {
		t.Fatal("newSink returned nil sink")
	}
}

func TestNewSink_Console(t *testing.T) {
	s, err := newSink(audiosink.KindConsole, -1)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if s == nil {
		t.Fatal("newSink returned nil sink")
	}
}

func TestSendCmd_RequiresExactlyOneArg(t *testing.T) {
	if err := sendCmd.Args(sendCmd, nil); err == nil {
		t.Error("expected error for zero args")
	}
	if err := sendCmd.Args(sendCmd, []string{"a", "b"}); err == nil {
		t.Error("expected error for two args")
	}
	if err := sendCmd.Args(sendCmd, []string{"HELLO"}); err != nil {
		t.Errorf("expected no error for one arg, got %v", err)
	}
}
