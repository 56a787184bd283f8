package common

import "errors"

// ErrModulePaused is returned when a guarded module rejects new work.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the host's pause switches to native modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name means no pause control is wired and the guard passes.
func Guard(view PauseView, module string) error {
	if view == nil || module == "" {
		return nil
	}
	if view.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
