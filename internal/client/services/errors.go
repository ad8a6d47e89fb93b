package services

import (
	"errors"
	"fmt"
)

// ErrNotSignedIn is returned by operations that need a current user.
var ErrNotSignedIn = errors.New("not signed in")

// Step names a provisioning step in error messages.
type Step string

const (
	StepValidate       Step = "validate device name"
	StepLoadKeys       Step = "load device keys"
	StepRegister       Step = "register device"
	StepDeriveKeys     Step = "derive tunnel keys"
	StepFetchPeer      Step = "fetch network peer"
	StepConvertPeerKey Step = "convert peer key"
	StepPersist        Step = "persist device keys"
	StepInstall        Step = "install tunnel"
)

// StepError is how a provisioning failure is reported to the user.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CompensationError means a step after registration failed and the device
// could not be deleted from the server either. KeyRetained reports whether the
// device key was kept in the local store so DeleteDevice can revoke it later.
// It is false when the user already had a device: that device's key is
// restored instead, since the store holds one key per user.
type CompensationError struct {
	DeviceID    int64
	Cause       error
	DeleteErr   error
	KeyRetained bool
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%v; removing device %d from the server also failed: %v", e.Cause, e.DeviceID, e.DeleteErr)
}

func (e *CompensationError) Unwrap() []error { return []error{e.Cause, e.DeleteErr} }
