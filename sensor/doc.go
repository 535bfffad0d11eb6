// Package sensor gates work on an external precondition by polling a check
// until it reports ready, the poll window closes, or the check faults.
//
// A poll is a small state machine:
//
//	probing --ready--> Ready
//	probing --fault--> Errored
//	probing --not ready, window open--> waiting --interval--> probing
//	probing --not ready, window closed--> TimedOut
//	any     --ctx done--> Cancelled
//
// TimedOut is terminal for the owning task and its error is not retryable;
// Errored carries a retryable SENSOR_ERROR.
package sensor
