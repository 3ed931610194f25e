// Package progress wraps github.com/vbauerster/mpb/v8 bars for the two
// genuinely long-running operations in the merge engine: ancestor reduction
// in the recursive driver (spec.md §4.6) and subtree emission in the tree
// writer (spec.md §4.4). Both are real, visible work — unlike rename
// detection, there is no stand-in bar here. Grounded on the bar setup in
// pkg/zeta/transfer.go.
package progress

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Bar is a single mpb progress bar plus the no-op fallback used when
// progress reporting is disabled or stderr isn't a terminal.
type Bar struct {
	bar *mpb.Bar
}

// Reporter owns the mpb.Progress container for one top-level operation.
// A Reporter created with enabled=false hands out Bars that do nothing,
// so callers never need to branch on whether reporting is active.
type Reporter struct {
	p       *mpb.Progress
	enabled bool
}

// NewReporter returns a Reporter. enabled is the caller's own request
// (MergeConfig.ShowRenameProgress); it is further gated on stderr actually
// being an interactive terminal, matching the reference repo's isatty
// checks in pkg/zeta/misc.go.
func NewReporter(enabled bool) *Reporter {
	enabled = enabled && isTerminal(os.Stderr)
	if !enabled {
		return &Reporter{enabled: false}
	}
	return &Reporter{
		enabled: true,
		p: mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithAutoRefresh(),
			mpb.WithWidth(termWidth()),
		),
	}
}

// Stage starts a new determinate bar labeled name with the given total. The
// returned Bar's Increment/Done are always safe to call even when the
// Reporter is disabled.
func (r *Reporter) Stage(name string, total int) *Bar {
	if !r.enabled || total <= 0 {
		return &Bar{}
	}
	b := r.p.New(int64(total),
		mpb.BarStyle().Filler("#").Padding(" "),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	return &Bar{bar: b}
}

// Increment advances the bar by n; a no-op Bar ignores it.
func (b *Bar) Increment(n int) {
	if b.bar == nil {
		return
	}
	b.bar.IncrBy(n)
}

// Done marks the bar complete; a no-op Bar ignores it.
func (b *Bar) Done() {
	if b.bar == nil {
		return
	}
	b.bar.SetCurrent(b.bar.Current())
	b.bar.Abort(false)
}

// Wait blocks until every bar created by this Reporter has finished
// rendering. A disabled Reporter returns immediately.
func (r *Reporter) Wait() {
	if r.enabled {
		r.p.Wait()
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	if w > 80 {
		return 80
	}
	return w
}
