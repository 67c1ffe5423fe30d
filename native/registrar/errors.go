package registrar

import "errors"

var (
	ErrNotOwner         = errors.New("registrar: caller is not the owner")
	ErrAlreadyDeployed  = errors.New("registrar: ledger already deployed")
	ErrNotDeployed      = errors.New("registrar: ledger not deployed")
	ErrAlreadyMigrated  = errors.New("registrar: onboarding already finished")
	ErrControllerClosed = errors.New("registrar: controller is closed")
	ErrInvalidArgument  = errors.New("registrar: invalid argument")
)
