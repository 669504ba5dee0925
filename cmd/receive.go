// cmd/receive.go
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/n7cw/cwkeyer/internal/adaptive"
	"github.com/n7cw/cwkeyer/internal/config"
	"github.com/n7cw/cwkeyer/internal/receiver"
	"github.com/n7cw/cwkeyer/internal/timing"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Decode mark/space duration tokens from stdin",
	Long: `Reads whitespace-separated mark:<ms>/space:<ms> tokens from stdin
(one cheap way to drive the receiver without real audio hardware) and
prints decoded characters as they're recognised.`,
	RunE: runReceive,
}

func runReceive(_ *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tr, err := timing.NewReceiver(settings.SpeedWPM, settings.TolerancePercent, settings.AdaptiveTiming)
	if err != nil {
		return fmt.Errorf("init timing: %w", err)
	}
	if err := tr.SetGap(settings.Gap); err != nil {
		return fmt.Errorf("init timing: %w", err)
	}
	if err := tr.Sync(); err != nil {
		return fmt.Errorf("init timing: %w", err)
	}

	var tracker *adaptive.Tracker
	if settings.AdaptiveTiming {
		tracker = adaptive.New(tr)
		if err := tracker.Enable(); err != nil {
			return fmt.Errorf("enable adaptive tracker: %w", err)
		}
	}

	rx := receiver.New(tr, settings.NoiseSpikeThresholdUS, tracker)
	return decodeStream(os.Stdin, os.Stdout, rx)
}

func decodeStream(in io.Reader, out io.Writer, rx *receiver.Receiver) error {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)

	var clockUS int64
	for scanner.Scan() {
		token := scanner.Text()
		kind, ms, err := parseToken(token)
		if err != nil {
			fmt.Fprintf(out, "\n[skipping malformed token %q: %v]\n", token, err)
			continue
		}

		switch kind {
		case "mark":
			begin := microTS(clockUS)
			clockUS += ms * 1000
			end := microTS(clockUS)
			if err := rx.MarkBegin(begin); err != nil {
				fmt.Fprintf(out, "\n[mark_begin: %v]\n", err)
				rx.ResetState()
				continue
			}
			if err := rx.MarkEnd(end); err != nil && !errors.Is(err, receiver.ErrTryAgain) {
				fmt.Fprintf(out, "\n[mark_end: %v]\n", err)
				rx.ResetState()
			}
		case "space":
			clockUS += ms * 1000
			ts := microTS(clockUS)
			ch, isEOW, err := rx.PollCharacter(&ts)
			switch {
			case err == nil:
				fmt.Fprint(out, string(ch))
				if isEOW {
					fmt.Fprint(out, " ")
				}
			case errors.Is(err, receiver.ErrTryAgain):
				// gap still assembling, nothing to report yet
			default:
				fmt.Fprintf(out, "\n[poll_character: %v]\n", err)
				rx.ResetState()
			}
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func microTS(us int64) receiver.Timestamp {
	return receiver.Timestamp{Sec: us / 1_000_000, USec: us % 1_000_000}
}

func parseToken(token string) (kind string, ms int64, err error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("expected kind:duration, got %q", token)
	}
	if parts[0] != "mark" && parts[0] != "space" {
		return "", 0, fmt.Errorf("unknown token kind %q", parts[0])
	}
	ms, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid duration: %w", err)
	}
	return parts[0], ms, nil
}
