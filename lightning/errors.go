package lightning

import (
	"errors"
	"fmt"

	"github.com/breez/lnunify/money"
)

var (
	ErrConnection    = errors.New("connection error")
	ErrInvalidExpiry = errors.New("invalid invoice expiry")
)

// ConnectionError is returned when a backend could not be reached.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrConnection, e.Err)
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type PaymentErrorCode int

const (
	// The receiving node has not settled the details of the payment yet.
	// The same payment can be attempted again.
	PaymentDetailsNotSettled PaymentErrorCode = 1
	PaymentRejected          PaymentErrorCode = 2
)

func (c PaymentErrorCode) String() string {
	switch c {
	case PaymentDetailsNotSettled:
		return "payment details not settled"
	case PaymentRejected:
		return "payment rejected"
	default:
		return fmt.Sprintf("payment error %d", int(c))
	}
}

type PaymentError struct {
	Code    PaymentErrorCode
	Message string
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryablePayment reports whether the same payment may be attempted again.
func IsRetryablePayment(err error) bool {
	var perr *PaymentError
	if !errors.As(err, &perr) {
		return false
	}

	return perr.Code == PaymentDetailsNotSettled
}

// ValidateInvoiceRequest checks an invoice request before it is sent to a
// backend.
func ValidateInvoiceRequest(req *CreateInvoiceRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing request", money.ErrInvalidAmount)
	}
	if req.Amount.MilliSatoshi() < 0 {
		return fmt.Errorf("%w: %v", money.ErrInvalidAmount, req.Amount)
	}
	if req.Expiry <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidExpiry, req.Expiry)
	}

	return nil
}
