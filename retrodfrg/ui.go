// Package retrodfrg provides a full-screen terminal UI in the style of old
// DOS defragmenters: a title, summary lines, a block map and a status block.
package retrodfrg

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// UI renders caller supplied lines on a tcell screen.
type UI struct {
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once
	mu       sync.Mutex

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string

	// block map rows, rendered as given
	progressMapLines []string
}

// NewUI initialises the terminal and starts handling keys.
func NewUI() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewUIWithScreen(s)
}

// NewUIWithScreen is NewUI on an existing screen, e.g. a simulation screen.
func NewUIWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
	}
	go u.eventLoop()
	return u, nil
}

// Close restores the terminal.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
}

// RequestStop records that the user asked to quit. Safe to call repeatedly.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		u.mu.Lock()
		if u.s != nil {
			_ = u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
		u.mu.Unlock()
	})
}

// Stopped is closed once the user pressed q, Esc or Ctrl-C.
func (u *UI) Stopped() <-chan struct{} {
	return u.stopChan
}

// IsStopped reports whether a stop was requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, tcell.StyleDefault)
	}
}

// LayoutAndDraw redraws the whole screen from the current state.
func (u *UI) LayoutAndDraw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()

	y := 0
	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		putStr(u.s, (w-len([]rune(u.title)))/2, y, u.title)
		y++
	}
	for _, line := range u.summaryLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}
	for _, line := range u.legendLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	if len(u.progressMapLines) > 0 {
		// leave room for the phase and status blocks
		avail := h - y - 7
		if avail < 1 {
			avail = 1
		}
		if avail > len(u.progressMapLines) {
			avail = len(u.progressMapLines)
		}
		for i := 0; i < avail && y < h; i++ {
			putStr(u.s, 0, y, u.progressMapLines[i])
			y++
		}
	}

	if len(u.phases) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Phase ")
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, y, b.String())
		y++
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Status ")
		y++
		for _, line := range u.statusLines {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line)
			y++
		}
	}

	u.s.Show()
}

// SetPhaseDone marks a phase, matched case-insensitively, as completed.
func (u *UI) SetPhaseDone(p string) {
	u.mu.Lock()
	u.phaseDoneMap[strings.ToLower(p)] = true
	u.mu.Unlock()
}

func (u *UI) SetPhases(labels []string) {
	u.mu.Lock()
	u.phases = append([]string(nil), labels...)
	u.mu.Unlock()
}

func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	u.title = t
	u.mu.Unlock()
}

func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	u.summaryLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) SetLegend(lines []string) {
	u.mu.Lock()
	u.legendLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) SetStatusLines(lines []string) {
	u.mu.Lock()
	u.statusLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

// SetProgressMap sets the block map rows. The UI does not track progress
// itself; it renders what it is given.
func (u *UI) SetProgressMap(lines []string) {
	u.mu.Lock()
	u.progressMapLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyEscape,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
