// Package verify turns the final state of a mock conversation into a
// pass/fail outcome.
package verify

import (
	"context"
	"fmt"
	"strings"

	"tcpmock/mockingjay/pkg/engine"
	"tcpmock/mockingjay/pkg/transport"
)

// Subject is what the verifier inspects, usually an *engine.Engine.
type Subject interface {
	Snapshot() engine.Snapshot
	Changed() <-chan struct{}
}

// Failure is the outcome of a failed verification.
type Failure struct {
	Faults []engine.Fault
	// Drained counts bytes discarded after a mismatch.
	Drained int
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mock server verification failed (%d %s):", len(f.Faults), plural(len(f.Faults), "fault", "faults"))
	for _, fault := range f.Faults {
		b.WriteString("\n  - ")
		b.WriteString(fault.String())
	}
	if f.Drained > 0 {
		fmt.Fprintf(&b, "\n  (%d more bytes received after the mismatch were ignored)", f.Drained)
	}
	return b.String()
}

// Has reports whether the failure contains a fault of kind k.
func (f *Failure) Has(k engine.Kind) bool {
	for _, fault := range f.Faults {
		if fault.Kind == k {
			return true
		}
	}
	return false
}

// Verify waits until s has settled or ctx is done and returns nil on
// success or a *Failure describing everything that went wrong.
func Verify(ctx context.Context, s Subject) error {
	snap, settled := wait(ctx, s)

	faults := Evaluate(snap)
	if !settled && snap.Pending() {
		detail := "conversation did not settle"
		if deadline, ok := ctx.Deadline(); ok {
			detail = fmt.Sprintf("conversation did not settle by %s", deadline.Format("15:04:05.000"))
		}
		faults = append(faults, engine.Fault{Kind: engine.Timeout, Detail: detail})
	}

	if len(faults) == 0 {
		return nil
	}
	return &Failure{Faults: faults, Drained: snap.Drained}
}

func wait(ctx context.Context, s Subject) (engine.Snapshot, bool) {
	for {
		changed := s.Changed()
		snap := s.Snapshot()
		if snap.Settled() {
			return snap, true
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), false
		}
	}
}

// Evaluate lists the faults of a snapshot: the recorded ones first, then
// every unmet condition. Windows from a burned one on, their responses and
// the bytes received for them are covered by the recorded fault.
func Evaluate(snap engine.Snapshot) []engine.Fault {
	faults := append([]engine.Fault(nil), snap.Faults...)
	if snap.HeadBurned() {
		return faults
	}

	windows, responses := snap.Windows, snap.Responses
	if snap.Burned {
		live := snap.BurnedAt - snap.Completed
		windows = windows[:min(live, len(windows))]
		responses = responses[:min(live, len(responses))]
	}

	if snap.Conn != transport.Connected && snap.Conn != transport.Closed {
		if snap.Declared() {
			faults = append(faults, engine.Fault{
				Kind:   engine.NoConnection,
				Detail: "expectations or responses were declared but no client ever connected",
			})
		}
		return faults
	}

	start := 0
	for i, w := range windows {
		if len(w) == 0 {
			continue
		}
		got := clip(snap.Received, start, start+len(w))
		if len(got) < len(w) {
			faults = append(faults, engine.Fault{
				Kind:     engine.UnmatchedRemainder,
				Window:   snap.Completed + i,
				Expected: w,
				Actual:   got,
			})
		} else if i >= len(responses) {
			faults = append(faults, engine.Fault{
				Kind:   engine.UnsentResponse,
				Window: snap.Completed + i,
				Detail: fmt.Sprintf("window %d (%q) matched but no response was declared for it", snap.Completed+i, w),
			})
		}
		start += len(w)
	}

	for i, r := range responses {
		faults = append(faults, engine.Fault{
			Kind:     engine.UnsentResponse,
			Window:   snap.Completed + i,
			Expected: r,
			Detail:   fmt.Sprintf("response %d (%q) was never sent", snap.Completed+i, r),
		})
	}

	if extra := clip(snap.Received, start, len(snap.Received)); len(extra) > 0 && !snap.Burned {
		faults = append(faults, engine.Fault{Kind: engine.UnexpectedBytes, Actual: extra})
	}

	return faults
}

func clip(p []byte, from, to int) []byte {
	if from >= len(p) {
		return nil
	}
	return p[from:min(to, len(p))]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
