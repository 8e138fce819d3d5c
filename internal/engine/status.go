package engine

import "asset-maintenance-backend/internal/model"

// Pure decision functions for the asset status state machine. Terminal
// states (retired, disposed, lost) are never entered or exited here;
// every function returns ok=false for them so the caller skips the
// write.

// statusOnRequestCreated decides the asset status when a new
// maintenance request is filed. A request that arrives with an assignee
// counts as immediately assigned.
func statusOnRequestCreated(current model.AssetStatus, assigned bool) (model.AssetStatus, bool) {
	if current.Terminal() {
		return current, false
	}
	if assigned || current.Operational() {
		return model.StatusUnderMaintenance, true
	}
	return current, false
}

// statusOnRequestActive decides the asset status when a request moves
// into an in-flight state (assigned, in progress).
func statusOnRequestActive(current model.AssetStatus) (model.AssetStatus, bool) {
	if current.Terminal() {
		return current, false
	}
	if current.Operational() {
		return model.StatusUnderMaintenance, true
	}
	return current, false
}

// statusOnRequestsSettled decides the asset status after requests have
// been resolved, closed or cancelled. remainingActive counts the
// asset's other requests still in {open, assigned, in progress}.
func statusOnRequestsSettled(current model.AssetStatus, remainingActive int64) (model.AssetStatus, bool) {
	if current.Terminal() {
		return current, false
	}
	if remainingActive > 0 {
		if current == model.StatusUnderMaintenance {
			return current, false
		}
		return model.StatusUnderMaintenance, true
	}
	if current == model.StatusUnderMaintenance {
		return model.StatusOperational, true
	}
	return current, false
}
