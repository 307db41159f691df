package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/pcagent/internal/executor"
	"github.com/rahul/pcagent/internal/vision"
)

var (
	_ executor.Desktop = (*Desktop)(nil)
	_ vision.Capturer  = (*Desktop)(nil)
)

// commandRunner runs an external program and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Desktop injects X11 input with xdotool and captures the screen with ffmpeg,
// falling back to scrot.
type Desktop struct {
	Display       string
	ScreenshotDir string
	run           commandRunner
}

func NewDesktop(screenshotDir string) *Desktop {
	display := os.Getenv("DISPLAY")
	if display == "" {
		display = ":0.0"
	}
	return &Desktop{Display: display, ScreenshotDir: screenshotDir, run: execRunner}
}

func (d *Desktop) xdotool(ctx context.Context, args ...string) error {
	output, err := d.run(ctx, "xdotool", args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return errors.New("xdotool is not installed; install it with 'sudo apt-get install xdotool'")
		}
		return fmt.Errorf("xdotool %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (d *Desktop) ClickAt(ctx context.Context, x, y int) error {
	return d.xdotool(ctx, "mousemove", strconv.Itoa(x), strconv.Itoa(y), "click", "1")
}

func (d *Desktop) TypeText(ctx context.Context, text string) error {
	return d.xdotool(ctx, "type", "--delay", "20", text)
}

func (d *Desktop) PressKey(ctx context.Context, key string) error {
	return d.xdotool(ctx, "key", xdotoolKey(key))
}

func (d *Desktop) ScrollPage(ctx context.Context, direction string, amount int) error {
	args, err := scrollArgs(direction, amount)
	if err != nil {
		return err
	}
	return d.xdotool(ctx, args...)
}

// ClickTemplate needs on-screen image matching, which this desktop does not do.
func (d *Desktop) ClickTemplate(ctx context.Context, imagePath string) error {
	return fmt.Errorf("click template %s: %w", imagePath, executor.ErrUnsupported)
}

// CaptureScreen grabs the whole X display as PNG.
func (d *Desktop) CaptureScreen(ctx context.Context) (*vision.Screenshot, error) {
	dir := d.ScreenshotDir
	keep := dir != ""
	if !keep {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("desktop_%d.png", time.Now().UnixNano()))

	output, err := d.run(ctx, "ffmpeg", "-f", "x11grab", "-i", d.Display, "-frames:v", "1", path, "-y")
	if err != nil {
		output, err = d.run(ctx, "scrot", path)
		if err != nil {
			return nil, fmt.Errorf("error capturing desktop: %w: %s", err, strings.TrimSpace(string(output)))
		}
	}

	png, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read desktop capture: %w", err)
	}
	shot := &vision.Screenshot{PNG: png, CapturedAt: time.Now()}
	if keep {
		shot.Path = path
	} else if err := os.Remove(path); err != nil {
		log.Printf("Warning: could not remove %s: %v", path, err)
	}
	return shot, nil
}

var xdotoolKeys = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"space":     "space",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"control":   "ctrl",
	"cmd":       "super",
	"win":       "super",
}

// xdotoolKey translates "ctrl+enter" style names into keysyms. Parts it does
// not know are passed through.
func xdotoolKey(key string) string {
	parts := strings.Split(strings.TrimSpace(key), "+")
	for i, p := range parts {
		if k, ok := xdotoolKeys[strings.ToLower(strings.TrimSpace(p))]; ok {
			parts[i] = k
		} else {
			parts[i] = strings.TrimSpace(p)
		}
	}
	return strings.Join(parts, "+")
}

// scrollArgs clicks the X wheel buttons: 4 up, 5 down, 6 left, 7 right.
func scrollArgs(direction string, amount int) ([]string, error) {
	var button string
	switch strings.ToLower(direction) {
	case "", "down":
		button = "5"
	case "up":
		button = "4"
	case "left":
		button = "6"
	case "right":
		button = "7"
	default:
		return nil, fmt.Errorf("invalid scroll direction %q", direction)
	}
	if amount <= 0 {
		amount = 1
	}
	return []string{"click", "--repeat", strconv.Itoa(amount), button}, nil
}
