package common

import (
	"fmt"

	coreerrors "rentchain/core/errors"
)

// Module names understood by the pause guard.
const (
	ModuleProperty = "property"
	ModuleRental   = "rental"
	ModuleEscrow   = "escrow"
	ModuleReview   = "review"
	ModuleRewards  = "rewards"
)

// Modules lists every pausable module.
var Modules = []string{ModuleProperty, ModuleRental, ModuleEscrow, ModuleReview, ModuleRewards}

// ErrModulePaused is returned by Guard when a module is paused.
var ErrModulePaused = fmt.Errorf("%w", coreerrors.ErrPaused)

type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutating calls into a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}

// KnownModule reports whether name is a pausable module.
func KnownModule(name string) bool {
	for _, m := range Modules {
		if m == name {
			return true
		}
	}
	return false
}
