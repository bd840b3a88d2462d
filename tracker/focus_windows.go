//go:build windows

package tracker

import (
	"syscall"
	"unsafe"
)

var (
	user32                   = syscall.NewLazyDLL("user32.dll")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProc  = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
)

type windowsFocusProvider struct{}

func newFocusProvider() (focusProvider, error) {
	return windowsFocusProvider{}, nil
}

// Current queries the Win32 foreground window. Any failure reads as "no
// focused window".
func (windowsFocusProvider) Current() (FocusedWindow, bool) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return FocusedWindow{}, false
	}
	var pid uint32
	procGetWindowThreadProc.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return FocusedWindow{}, false
	}
	return FocusedWindow{
		PID:         int32(pid),
		WindowTitle: windowTitle(hwnd),
	}, true
}

func windowTitle(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length+1)
	return syscall.UTF16ToString(buf)
}
