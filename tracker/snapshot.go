package tracker

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

// ProcessInfo is one running game candidate as seen by the snapshot source.
type ProcessInfo struct {
	Name        string
	Path        string
	WindowTitle string
	PID         int32
}

// FocusedWindow identifies the process owning the foreground window.
type FocusedWindow struct {
	PID         int32
	WindowTitle string
}

// SnapshotSource is the engine's view of the operating system. Both methods
// are best-effort: a failed OS query degrades to an empty result and must
// never surface an error into the polling loops.
type SnapshotSource interface {
	// Candidates lists running processes that look like game candidates.
	Candidates() []ProcessInfo
	// FocusedWindow returns the foreground window, or ok=false when there
	// is none or the query failed.
	FocusedWindow() (FocusedWindow, bool)
}

// ErrFocusUnsupported is returned by newFocusProvider on platforms without
// a foreground-window query.
var ErrFocusUnsupported = errors.New("focus provider unsupported on this platform")

// focusProvider answers "which process owns the foreground window".
type focusProvider interface {
	Current() (FocusedWindow, bool)
}

// GopsutilSource implements SnapshotSource on top of gopsutil process
// enumeration plus an optional platform focus provider.
type GopsutilSource struct {
	logger zerolog.Logger
	focus  focusProvider
}

// NewGopsutilSource builds the default snapshot source. When the platform
// has no focus provider the source still works; it just never reports a
// focused window.
func NewGopsutilSource(logger zerolog.Logger) *GopsutilSource {
	s := &GopsutilSource{logger: logger.With().Str("component", "snapshot").Logger()}
	prov, err := newFocusProvider()
	if err != nil {
		s.logger.Warn().Err(err).Msg("focus provider unavailable, focus reads as none")
	} else {
		s.focus = prov
	}
	return s
}

// Candidates enumerates processes whose executable sits under a known game
// library directory. Enumeration errors yield an empty list.
func (s *GopsutilSource) Candidates() []ProcessInfo {
	procs, err := process.Processes()
	if err != nil {
		s.logger.Warn().Err(err).Msg("process enumeration failed")
		return nil
	}
	focused, hasFocused := s.FocusedWindow()
	out := make([]ProcessInfo, 0, 8)
	for _, p := range procs {
		if p == nil {
			continue
		}
		path, err := p.Exe()
		if err != nil || path == "" {
			continue
		}
		if !MatchesKnownPlatform(path) {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		info := ProcessInfo{
			Name: name,
			Path: path,
			PID:  p.Pid,
		}
		// The foreground window is the only title the platform hands out
		// cheaply; everything else keeps its executable name.
		if hasFocused && focused.PID == p.Pid {
			info.WindowTitle = focused.WindowTitle
		}
		out = append(out, info)
	}
	return out
}

// FocusedWindow delegates to the platform provider.
func (s *GopsutilSource) FocusedWindow() (FocusedWindow, bool) {
	if s.focus == nil {
		return FocusedWindow{}, false
	}
	return s.focus.Current()
}
