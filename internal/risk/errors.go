package risk

import "errors"

// Sentinel errors for the risk subsystem. Callers branch with errors.Is.
var (
	// ErrInvalidInput marks precondition violations in sizing inputs.
	// Retrying with the same arguments will fail again.
	ErrInvalidInput = errors.New("risk: invalid input")

	// ErrUnauthorized marks a kill switch reset attempted without the
	// explicit admin override.
	ErrUnauthorized = errors.New("risk: unauthorized")
)
