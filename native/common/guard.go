package common

import "errors"

// Module identifiers accepted by the pause switchboard.
const (
	ModuleListings   = "listings"
	ModuleLease      = "lease"
	ModuleDispute    = "dispute"
	ModuleReputation = "reputation"
	ModulePenalty    = "penalty"
)

// ErrModulePaused is returned when an operation targets a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects operations against paused modules. A nil view or empty module
// name passes, so unwired deployments stay permissive.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
