package codec

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedAmount         = errors.New("malformed amount")
	ErrMalformedTimestamp      = errors.New("malformed timestamp")
	ErrBufferEncodeUnsupported = errors.New("encoding buffers is not supported")
)

type Kind int

const (
	KindAmount    Kind = 0
	KindTimestamp Kind = 1
	KindBuffer    Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindAmount:
		return "amount"
	case KindTimestamp:
		return "timestamp"
	default:
		return "buffer"
	}
}

// MalformedError carries the raw token a dialect adapter could not decode.
type MalformedError struct {
	Kind    Kind
	Dialect Dialect
	Token   string
	Err     error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed %s %s: %v", e.Dialect, e.Kind, e.Token, e.Err)
	}

	return fmt.Sprintf("%s: malformed %s %s", e.Dialect, e.Kind, e.Token)
}

func (e *MalformedError) Is(target error) bool {
	switch target {
	case ErrMalformedAmount:
		return e.Kind == KindAmount
	case ErrMalformedTimestamp:
		return e.Kind == KindTimestamp
	}

	return false
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}
