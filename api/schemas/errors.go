package schemas

import (
	"errors"
	"fmt"
)

// The error taxonomy separates caller-fixable input problems from fatal
// configuration faults and recoverable upstream outages. Algorithmic edge
// cases (empty gene sets, empty graphs, zero degree) are never errors; they
// produce defined empty or zero results.

// ConfigurationError reports a missing or unusable required resource, such as
// an absent STRING data file. It is fatal and surfaced immediately.
type ConfigurationError struct {
	Resource string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Resource)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports caller-fixable bad input, such as a gene set over
// the network size cap or an unknown clustering algorithm.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// UpstreamError reports a degraded external dependency. Callers of
// supplementary operations (external enrichment) log it and return empty
// results instead of failing the request.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
