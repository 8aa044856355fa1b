package transfer

import "fmt"

// ConfigError reports a batch that cannot start: an invalid concurrency cap or a
// malformed spec. No transfer is attempted when it is returned.
type ConfigError struct {
	Field  string // The offending setting or spec field
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid batch configuration for %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransferError represents the failure of a single transfer: an unexpected status code,
// a network failure or a disk failure. Transfers are never retried.
type TransferError struct {
	Source      string // Source URI of the transfer
	Destination string // Destination path of the transfer
	StatusCode  int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Reason      string // Human-readable explanation
	Err         error  // Underlying error, if any
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer of %s failed (HTTP %d): %s", e.Source, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("transfer of %s failed: %s", e.Source, e.Reason)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// BatchError is returned to the caller of a batch once every transfer has unwound.
// It carries the first TransferError observed; later failures are discarded.
type BatchError struct {
	Total     int // Number of transfers in the batch
	Completed int // Number of transfers that completed successfully
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted after %d/%d transfers: %v", e.Completed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
