package forceupdate

import (
	"errors"
	"sync"
)

var (
	// ErrNotConfigured is returned by Shared before Configure succeeded.
	ErrNotConfigured = errors.New("shared force update controller not configured")

	// ErrAlreadyConfigured is returned by a second successful Configure call.
	ErrAlreadyConfigured = errors.New("shared force update controller already configured")
)

var (
	sharedMu         sync.Mutex
	sharedController *Controller
)

// Configure creates the process-wide controller. It must be called once,
// before the first call to Shared. A failed call may be retried.
func Configure(cfg Config, opts ...Option) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedController != nil {
		return ErrAlreadyConfigured
	}

	c, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	sharedController = c
	return nil
}

// Shared returns the controller created by Configure.
func Shared() (*Controller, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedController == nil {
		return nil, ErrNotConfigured
	}
	return sharedController, nil
}

// resetShared closes and forgets the shared controller. Used by tests.
func resetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedController != nil {
		sharedController.Close()
		sharedController = nil
	}
}
