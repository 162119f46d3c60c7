package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// osTerminalActivator shells out to an OS-specific window-focus tool,
// dispatching by runtime.GOOS rather than linking a cross-platform
// GUI toolkit.
type osTerminalActivator struct{}

func newTerminalActivator() *osTerminalActivator {
	return &osTerminalActivator{}
}

// Activate focuses the terminal window for the given terminalKey. Only
// keys of the form "EMULATOR:<value>" are acted on: on darwin the value
// is passed to osascript as an application name, on linux to
// "wmctrl -a" as a window title. Every other key ("TTY:", "PID:",
// "UNKNOWN:", "DISCOVERED:"), and every other platform, returns an
// error rather than silently doing nothing.
func (a *osTerminalActivator) Activate(key string) error {
	switch runtime.GOOS {
	case "darwin":
		return a.activateDarwin(key)
	case "linux":
		return a.activateLinux(key)
	default:
		return fmt.Errorf("terminal activation unsupported on %s", runtime.GOOS)
	}
}

func (a *osTerminalActivator) activateDarwin(key string) error {
	app, ok := strings.CutPrefix(key, "EMULATOR:")
	if !ok {
		return fmt.Errorf("cannot activate terminal for key %q on darwin", key)
	}
	script := fmt.Sprintf(`tell application "%s" to activate`, app)
	return exec.Command("osascript", "-e", script).Run()
}

func (a *osTerminalActivator) activateLinux(key string) error {
	title, ok := strings.CutPrefix(key, "EMULATOR:")
	if !ok {
		return fmt.Errorf("cannot activate terminal for key %q on linux", key)
	}
	if _, err := exec.LookPath("wmctrl"); err != nil {
		return fmt.Errorf("wmctrl not available to activate %q: %w", title, err)
	}
	return exec.Command("wmctrl", "-a", title).Run()
}
