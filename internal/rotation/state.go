// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package rotation

// State is a step of the rotation state machine.
type State string

const (
	StateStart                State = "start"
	StateResolved             State = "resolved"
	StateTypeDetected         State = "type-detected"
	StateReferencesDiscovered State = "references-discovered"
	StateTestedOld            State = "tested-old"
	StateConfirmed            State = "confirmed"
	StateConfigBackedUp       State = "config-backed-up"
	StateNewKeyGenerated      State = "new-key-generated"
	StateTestedNew            State = "tested-new"
	StateOldArchived          State = "old-archived"
	StateNewInstalled         State = "new-installed"
	StateReferencesUpdated    State = "references-updated"
	StateUploaded             State = "uploaded"

	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateSimulated State = "simulated"
)

// order ranks the non-terminal states; transitions only move forward.
var order = map[State]int{
	StateStart:                0,
	StateResolved:             1,
	StateTypeDetected:         2,
	StateReferencesDiscovered: 3,
	StateTestedOld:            4,
	StateConfirmed:            5,
	StateConfigBackedUp:       6,
	StateNewKeyGenerated:      7,
	StateTestedNew:            8,
	StateOldArchived:          9,
	StateNewInstalled:         10,
	StateReferencesUpdated:    11,
	StateUploaded:             12,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateSimulated:
		return true
	}
	return false
}

// KeyMaterialReplaced reports whether the new key is installed. From here
// on the workflow can no longer fail; later problems only produce warnings.
func (s State) KeyMaterialReplaced() bool {
	return !s.Terminal() && order[s] >= order[StateNewInstalled]
}

// canMove reports whether from → to is a legal transition.
func canMove(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateCancelled:
		return order[from] < order[StateOldArchived]
	case StateFailed:
		// An install failure after archiving restores the old key first.
		return !from.KeyMaterialReplaced()
	case StateSimulated:
		return order[from] <= order[StateConfirmed]
	case StateSucceeded:
		return order[from] >= order[StateNewInstalled]
	}
	next, ok := order[to]
	return ok && next > order[from]
}
