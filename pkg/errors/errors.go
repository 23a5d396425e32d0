package errors

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

// Is reports whether err carries this code anywhere in its chain.
func (c Code[MT]) Is(err error) bool {
	typed, ok := FromError(err)
	if !ok {
		return false
	}
	return typed.Code() == c.Code
}

// FromError returns the outermost typed error of err's chain.
func FromError(err error) (Error, bool) {
	var typed Error
	if !errors.As(err, &typed) {
		return nil, false
	}
	return typed, true
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

// Unwrap exposes the cause so that errors.Is/As keep working on wrapped errors.
func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type InsufficientFundsMetadata struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

type AddressCorruptionMetadata struct {
	Address string `json:"address"`
}

type InvalidFeeInputMetadata struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type FeeEstimatesMetadata struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

var INSUFFICIENT_FUNDS = Code[InsufficientFundsMetadata]{
	1,
	"INSUFFICIENT_FUNDS",
	grpccodes.FailedPrecondition,
}

var NO_DYNAMIC_FEE_ESTIMATES = Code[FeeEstimatesMetadata]{
	2,
	"NO_DYNAMIC_FEE_ESTIMATES",
	grpccodes.Unavailable,
}

var ADDRESS_CORRUPTION = Code[AddressCorruptionMetadata]{
	3,
	"ADDRESS_CORRUPTION",
	grpccodes.DataLoss,
}

var INVALID_FEE_INPUT = Code[InvalidFeeInputMetadata]{
	4,
	"INVALID_FEE_INPUT",
	grpccodes.InvalidArgument,
}

var FEE_ESTIMATES_UNAVAILABLE = Code[FeeEstimatesMetadata]{
	5,
	"FEE_ESTIMATES_UNAVAILABLE",
	grpccodes.Unavailable,
}
