package imaging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress pushed by Copy. Advance is called once per
// chunk with the number of bytes just written.
type Reporter interface {
	Start(total uint64)
	Advance(n uint64)
	Finish()
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Start(uint64)   {}
func (NopReporter) Advance(uint64) {}
func (NopReporter) Finish()        {}

// BarReporter draws a byte progress bar.
type BarReporter struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewBarReporter returns a reporter drawing to w.
func NewBarReporter(w io.Writer, description string) *BarReporter {
	return &BarReporter{w: w, description: description}
}

func (b *BarReporter) Start(total uint64) {
	limit := int64(total)
	if total == 0 {
		limit = -1
	}
	b.bar = progressbar.NewOptions64(limit,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerHead:    ">",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = io.WriteString(b.w, "\n")
		}),
	)
}

func (b *BarReporter) Advance(n uint64) {
	if b.bar != nil {
		_ = b.bar.Add64(int64(n))
	}
}

func (b *BarReporter) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// LogReporter logs progress every Every bytes, for non-interactive runs.
type LogReporter struct {
	Log   zerolog.Logger
	Every uint64

	total, done, next uint64
}

func (l *LogReporter) Start(total uint64) {
	l.total = total
	l.done = 0
	l.next = l.Every
	l.Log.Info().Uint64("total", total).Msg("copy started")
}

func (l *LogReporter) Advance(n uint64) {
	l.done += n
	if l.Every == 0 || l.done < l.next {
		return
	}
	for l.next <= l.done {
		l.next += l.Every
	}
	ev := l.Log.Info().Uint64("done", l.done).Uint64("total", l.total)
	if l.total > 0 {
		ev = ev.Float64("percent", float64(l.done)*100/float64(l.total))
	}
	ev.Msg("copy progress")
}

func (l *LogReporter) Finish() {
	l.Log.Info().Uint64("done", l.done).Msg("copy finished")
}
