package errors

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the error domain reported in gRPC error details.
const Domain = "github.com/Impact-Forge/SharedGamemode"

// Error is a session error carrying a code, an internal message, and the
// metadata used to render the localized message.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error with code and message.
func New(code Code, message string) *Error {
	return WrapWithMetadata(code, message, nil, nil)
}

// WithMetadata returns an error whose metadata fills the localized template,
// for example {"ScenarioID": "siege"}.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return WrapWithMetadata(code, message, metadata, nil)
}

// Wrap returns an error with code that unwraps to cause.
func Wrap(code Code, message string, cause error) *Error {
	return WrapWithMetadata(code, message, nil, cause)
}

// WrapWithMetadata is the general constructor.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// ToGRPCStatus builds the status returned to host clients. The code travels
// as ErrorInfo.Reason so FromGRPCStatus can recover it.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	base := status.New(e.Code.GRPCCode(), e.Message)
	withDetails, err := base.WithDetails(
		&errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata},
		&errdetails.LocalizedMessage{Locale: locale, Message: userMessage},
	)
	if err != nil {
		return base.Err()
	}
	return withDetails.Err()
}
