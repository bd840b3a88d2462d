//go:build !windows

package tracker

func newFocusProvider() (focusProvider, error) {
	return nil, ErrFocusUnsupported
}
