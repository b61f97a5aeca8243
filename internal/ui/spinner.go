package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/needha-erp/erpdesk/internal/ui/styles"
)

// Spinners and progress bars write to stderr so stdout stays clean for
// --json and --yaml output.
var statusOut io.Writer = os.Stderr

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Spinner provides a simple animated spinner for long operations
type Spinner struct {
	message string
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

// NewSpinner creates a new spinner with the given message
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation in the background
func (s *Spinner) Start() {
	// Accessible mode or non-TTY: just print static message
	if styles.IsAccessible() || !isTerminal() {
		fmt.Fprintln(statusOut, s.message+"...")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		style := lipgloss.NewStyle().Foreground(styles.Accent)
		i := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				// Clear the spinner line
				fmt.Fprint(statusOut, "\r\033[K")
				return
			case <-ticker.C:
				frame := style.Render(frames[i%len(frames)])
				fmt.Fprintf(statusOut, "\r%s %s", frame, s.message)
				i++
			}
		}
	}()
}

// Stop stops the spinner and waits for the line to be cleared
func (s *Spinner) Stop() {
	s.stop.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(msg string) {
	s.Stop()
	fmt.Fprintln(statusOut, styles.SuccessMsg(msg))
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(msg string) {
	s.Stop()
	fmt.Fprintln(statusOut, styles.ErrorMsg(msg))
}

// ══════════════════════════════════════════════════════════════════════════
// Progress bar for operations with known progress
// ══════════════════════════════════════════════════════════════════════════

// Progress represents a progress bar. Increment may be called from
// several goroutines.
type Progress struct {
	mu      sync.Mutex
	total   int
	current int
	label   string
	width   int
}

// NewProgress creates a new progress bar
func NewProgress(label string, total int) *Progress {
	return &Progress{
		label: label,
		total: total,
		width: 30,
	}
}

// Increment increments progress by 1
func (p *Progress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.render()
}

func (p *Progress) render() {
	if p.total <= 0 {
		return
	}

	// Accessible mode or non-TTY: print simple text progress
	if styles.IsAccessible() || !isTerminal() {
		pct := p.current * 100 / p.total
		// Print every 10% to avoid spam
		if pct%10 == 0 && (p.current == 0 || (p.current-1)*100/p.total != pct) {
			fmt.Fprintf(statusOut, "%s: %d%% (%d of %d)\n", p.label, pct, p.current, p.total)
		}
		return
	}

	pct := float64(p.current) / float64(p.total)
	filled := int(pct * float64(p.width))
	empty := p.width - filled

	bar := lipgloss.NewStyle().Foreground(styles.Success).Render(
		strings.Repeat("█", max(filled, 0)),
	) + lipgloss.NewStyle().Foreground(styles.Muted).Render(
		strings.Repeat("░", max(empty, 0)),
	)

	fmt.Fprintf(statusOut, "\r%s %s %3d%% [%d/%d]", p.label, bar, int(pct*100), p.current, p.total)
}

// Done finishes the progress bar
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.render()
	if p.total > 0 && !styles.IsAccessible() && isTerminal() {
		fmt.Fprintln(statusOut)
	}
}
