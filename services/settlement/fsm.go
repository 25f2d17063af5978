package settlement

import (
	"github.com/looplab/fsm"
)

const (
	StateAssembled       = "assembled"
	StateLocked          = "locked"
	StateCustodianSigned = "custodian_signed"
	StateBroadcast       = "broadcast"
	StateRecorded        = "recorded"
	StateFailed          = "failed"

	EventLock      = "lock"
	EventCoSign    = "cosign"
	EventBroadcast = "broadcast"
	EventRecord    = "record"
	EventFail      = "fail"
)

// newAttemptFSM tracks one confirm attempt:
// assembled -> locked -> custodian_signed -> broadcast -> recorded, with
// failed reachable from every state but recorded.
func newAttemptFSM(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateAssembled,
		fsm.Events{
			{Name: EventLock, Src: []string{StateAssembled}, Dst: StateLocked},
			{Name: EventCoSign, Src: []string{StateLocked}, Dst: StateCustodianSigned},
			{Name: EventBroadcast, Src: []string{StateCustodianSigned}, Dst: StateBroadcast},
			{Name: EventRecord, Src: []string{StateBroadcast}, Dst: StateRecorded},
			{
				Name: EventFail,
				Src: []string{
					StateAssembled,
					StateLocked,
					StateCustodianSigned,
					StateBroadcast,
				},
				Dst: StateFailed,
			},
		},
		callbacks,
	)
}
