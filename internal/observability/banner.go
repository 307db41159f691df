package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var spinnerFrames = []string{"◐", "◓", "◑", "◒"}
var spinnerIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    ____  ______   ___   _____________   ________
   / __ \/ ____/  /   | / ____/ ____/ | / /_  __/
  / /_/ / /      / /| |/ / __/ __/ /  |/ / / /
 / ____/ /___   / ___ / /_/ / /___/ /|  / / /
/_/    \____/  /_/  |_\____/_____/_/ |_/ /_/

        >> DESKTOP & BROWSER TASK AUTOMATION <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Banner: 1-9, status line: 10, logs scroll from 12.
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the status line in place.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memMB := float64(m.Alloc) / 1024 / 1024

	st := GetStatus()
	uptime := time.Since(startTime).Round(time.Second)

	pulseText, pulseColor := "HEALTHY", colorNeonCyan
	if delta := time.Since(st.LastHeartbeat); delta >= 90*time.Second {
		pulseText, pulseColor = "OFFLINE", colorNeonMag
	} else if delta >= 40*time.Second {
		pulseText, pulseColor = "LAGGING", colorPurple
	}

	spin := " "
	if st.Role != RoleIdle {
		spin = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	task := st.ActiveTask
	if task == "" {
		task = "Waiting..."
	}
	if len(task) > 28 {
		task = task[:25] + "..."
	}
	progress := ""
	if st.TotalSteps > 0 {
		progress = fmt.Sprintf(" %d/%d", st.Step, st.TotalSteps)
	}

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%-7s%s | %s%s %-8s%s [%s%s] runs:%d failed:%d [%v] [%.1fMB]\033[u",
		colorReset,
		st.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulseText, colorReset,
		colorPurple, spin, st.Role, colorReset,
		task, progress,
		st.Runs, st.FailedRuns,
		uptime,
		memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
