package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const xvfbScreen = "1280x800x24"

// startXvfb launches the virtual display used by headful mode and waits for
// its X socket.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", xvfbScreen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	if err := waitDisplay(display, 5*time.Second); err != nil {
		m.stopXvfb()
		return err
	}
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

// waitDisplay polls for the Unix socket of display (":99" → /tmp/.X11-unix/X99).
func waitDisplay(display string, timeout time.Duration) error {
	sock := "/tmp/.X11-unix/X" + strings.TrimPrefix(strings.SplitN(display, ".", 2)[0], ":")
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("xvfb: display %s not ready after %s", display, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		p.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
}
