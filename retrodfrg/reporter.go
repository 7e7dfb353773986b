package retrodfrg

import (
	"fmt"
	"strings"
	"time"

	"dddw/imaging"
)

var _ imaging.Reporter = (*Reporter)(nil)

// header rows above the map: title, 3 summary lines, legend
const headerRows = 5

// Reporter draws copy progress as a block map, one glyph per group of chunks.
type Reporter struct {
	ui        *UI
	source    string
	chunkSize uint64

	start    time.Time
	lastDraw time.Time
	total    uint64
	done     uint64

	now func() time.Time
}

// NewReporter returns a Reporter drawing on ui.
func NewReporter(ui *UI, source string, chunkSize int) *Reporter {
	return &Reporter{ui: ui, source: source, chunkSize: uint64(chunkSize), now: time.Now}
}

func (r *Reporter) Start(total uint64) {
	r.total = total
	r.done = 0
	r.start = r.now()
	r.ui.SetTitle(" dddw ")
	r.ui.SetSummaryLines([]string{
		"Source: " + r.source,
		"Size:   " + imaging.HumanBytes(total),
		"Chunk:  " + imaging.HumanBytes(r.chunkSize),
	})
	r.ui.SetLegend([]string{"█ copied   ░ pending   (q aborts, leaving an incomplete image)"})
	r.ui.SetPhases([]string{"Copy", "Done"})
	r.draw()
}

func (r *Reporter) Advance(n uint64) {
	r.done += n
	if r.now().Sub(r.lastDraw) < 100*time.Millisecond {
		return
	}
	r.draw()
}

func (r *Reporter) Finish() {
	r.ui.SetPhaseDone("Copy")
	r.ui.SetPhaseDone("Done")
	r.draw()
}

func (r *Reporter) draw() {
	r.lastDraw = r.now()
	w, h := r.ui.Size()
	if w > 0 && h > 0 {
		r.ui.SetProgressMap(r.blockMap(w, h-headerRows-7))
	}
	r.ui.SetStatusLines(r.statusLines())
	r.ui.LayoutAndDraw()
}

// blockMap lays the chunks of the device out over at most rows×w cells.
func (r *Reporter) blockMap(w, rows int) []string {
	if r.total == 0 || r.chunkSize == 0 || w <= 0 {
		return nil
	}
	if rows < 1 {
		rows = 1
	}
	chunks := (r.total + r.chunkSize - 1) / r.chunkSize
	cells := uint64(w * rows)
	perCell := (chunks + cells - 1) / cells
	if perCell == 0 {
		perCell = 1
	}
	used := (chunks + perCell - 1) / perCell
	doneChunks := (r.done + r.chunkSize - 1) / r.chunkSize
	filled := doneChunks / perCell
	if r.done >= r.total {
		filled = used
	}

	var lines []string
	for start := uint64(0); start < used; start += uint64(w) {
		var b strings.Builder
		for i := start; i < used && i < start+uint64(w); i++ {
			if i < filled {
				b.WriteRune('█')
			} else {
				b.WriteRune('░')
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}

func (r *Reporter) statusLines() []string {
	elapsed := r.now().Sub(r.start).Truncate(time.Second)
	var rate float64
	if s := r.now().Sub(r.start).Seconds(); s > 0 {
		rate = float64(r.done) / s
	}
	eta := "n/a"
	if rate > 0 && r.total > r.done {
		eta = time.Duration(float64(r.total-r.done) / rate * float64(time.Second)).Truncate(time.Second).String()
	}
	pct := 0.0
	if r.total > 0 {
		pct = float64(r.done) * 100 / float64(r.total)
	}
	return []string{
		fmt.Sprintf("Copied: %s / %s (%.1f%%)", imaging.HumanBytes(r.done), imaging.HumanBytes(r.total), pct),
		fmt.Sprintf("Elapsed: %s   Rate: %s/s   ETA: %s", elapsed, imaging.HumanBytes(uint64(rate)), eta),
	}
}
