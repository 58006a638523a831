// Package errors provides the CNI error document used by patu.
//
// Every failure that reaches the container runtime is an *Error carrying a
// numeric code. Codes 1-11 are the common codes reserved by the CNI
// specification; codes from 100 upward are plugin specific.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/containernetworking/cni/pkg/types"
)

// ErrorCode represents a CNI error code.
type ErrorCode uint

const (
	// ErrCodeIncompatibleVersion indicates an incompatible CNI version.
	ErrCodeIncompatibleVersion = ErrorCode(types.ErrIncompatibleCNIVersion)

	// ErrCodeUnsupportedField indicates an unsupported field in the network configuration.
	ErrCodeUnsupportedField = ErrorCode(types.ErrUnsupportedField)

	// ErrCodeContainerUnknown indicates the container is unknown or does not exist.
	ErrCodeContainerUnknown = ErrorCode(types.ErrUnknownContainer)

	// ErrCodeInvalidEnv indicates missing or invalid CNI_* environment variables.
	ErrCodeInvalidEnv = ErrorCode(types.ErrInvalidEnvironmentVariables)

	// ErrCodeIO indicates an I/O failure, e.g. stdin could not be read.
	ErrCodeIO = ErrorCode(types.ErrIOFailure)

	// ErrCodeDecode indicates content could not be decoded.
	ErrCodeDecode = ErrorCode(types.ErrDecodingFailure)

	// ErrCodeInvalidConfig indicates the network configuration failed validation.
	ErrCodeInvalidConfig = ErrorCode(types.ErrInvalidNetworkConfig)

	// ErrCodeTryAgainLater indicates a transient condition.
	ErrCodeTryAgainLater = ErrorCode(types.ErrTryAgainLater)

	// ErrCodeDelegate indicates the IPAM delegate could not be invoked or failed without a result.
	ErrCodeDelegate ErrorCode = 101

	// ErrCodeAttach indicates a netlink, namespace or firewall failure while attaching.
	ErrCodeAttach ErrorCode = 102
)

// Error is a CNI error document.
type Error struct {
	Code    ErrorCode
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	case e.Details != "":
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// DetailText returns the explicit details, falling back to the cause message.
func (e *Error) DetailText() string {
	if e.Details != "" {
		return e.Details
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// CNI returns the error as the document type of the CNI library.
func (e *Error) CNI() *types.Error {
	return types.NewError(uint(e.Code), e.Message, e.DetailText())
}

// MarshalJSON encodes the error as {"code","msg","details"}.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.CNI())
}

// UnmarshalJSON decodes an error document produced by another plugin.
func (e *Error) UnmarshalJSON(data []byte) error {
	var doc types.Error
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*e = *FromCNI(&doc)
	return nil
}

// FromCNI converts an error document returned by the CNI library.
func FromCNI(err *types.Error) *Error {
	return &Error{
		Code:    ErrorCode(err.Code),
		Message: err.Msg,
		Details: err.Details,
	}
}

// New creates a new error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewEnvError creates an invalid environment error.
func NewEnvError(message string) *Error {
	return New(ErrCodeInvalidEnv, message)
}

// NewIOError creates an I/O failure error.
func NewIOError(message string, cause error) *Error {
	return Wrap(ErrCodeIO, message, cause)
}

// NewDecodeError creates a decode failure error.
func NewDecodeError(message string, cause error) *Error {
	return Wrap(ErrCodeDecode, message, cause)
}

// NewConfigError creates an invalid network configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeInvalidConfig, message, cause)
}

// NewDelegateError creates an IPAM delegate error.
func NewDelegateError(message string, cause error) *Error {
	return Wrap(ErrCodeDelegate, message, cause)
}

// NewAttachError creates an attachment error.
func NewAttachError(message string, cause error) *Error {
	return Wrap(ErrCodeAttach, message, cause)
}

// As converts any error into an *Error. Errors without a CNI code are
// reported as attachment failures.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	var cniErr *types.Error
	if stderrors.As(err, &cniErr) && cniErr.Code != 0 {
		return FromCNI(cniErr)
	}
	return NewAttachError("internal error", err)
}

// Write encodes err as a CNI error document followed by a newline.
func Write(w io.Writer, err error) error {
	return json.NewEncoder(w).Encode(As(err).CNI())
}
