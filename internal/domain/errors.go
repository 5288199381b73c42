package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrValidation           = errors.New("validation error")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrUnsupportedProvider  = errors.New("unsupported provider")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrProviderRejected     = errors.New("provider rejected request")
	ErrProviderTimeout      = errors.New("provider timeout")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrStorage              = errors.New("storage error")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrJobTerminal          = errors.New("job already in terminal state")
	ErrBatchNotCancellable  = errors.New("batch cannot be cancelled")
)
