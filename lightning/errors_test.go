package lightning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/breez/lnunify/money"
	"github.com/stretchr/testify/assert"
)

func Test_ConnectionError(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	var err error = &ConnectionError{Op: "POST /v1/pay", Err: inner}
	wrapped := fmt.Errorf("pay: %w", err)

	assert.ErrorIs(t, wrapped, ErrConnection)
	assert.ErrorIs(t, wrapped, inner)
	assert.Contains(t, err.Error(), "POST /v1/pay")
}

func Test_IsRetryablePayment(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not settled", &PaymentError{Code: PaymentDetailsNotSettled}, true},
		{"wrapped not settled", fmt.Errorf("x: %w", &PaymentError{Code: PaymentDetailsNotSettled}), true},
		{"rejected", &PaymentError{Code: PaymentRejected}, false},
		{"message mentioning settled", errors.New("payment details not settled"), false},
		{"nil", nil, false},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert.Equal(t, tst.want, IsRetryablePayment(tst.err))
		})
	}
}

func Test_ExpirySeconds(t *testing.T) {
	tests := []struct {
		expiry time.Duration
		want   int64
	}{
		{time.Hour, 3600},
		{time.Second, 1},
		{time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
	}

	for _, tst := range tests {
		r := &CreateInvoiceRequest{Expiry: tst.expiry}
		assert.Equal(t, tst.want, r.ExpirySeconds(), tst.expiry.String())
	}
}

func Test_ValidateInvoiceRequest(t *testing.T) {
	one, _ := money.FromSatoshi(1)
	assert.NoError(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Amount: one, Expiry: time.Hour}))
	assert.NoError(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Expiry: time.Minute}))

	assert.ErrorIs(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Amount: one}), ErrInvalidExpiry)
	assert.ErrorIs(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Amount: one, Expiry: -time.Second}), ErrInvalidExpiry)
	assert.NoError(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Amount: one, Expiry: 1500 * time.Millisecond}))

	neg, _ := one.Sub(money.MaxAmount)
	assert.ErrorIs(t, ValidateInvoiceRequest(&CreateInvoiceRequest{Amount: neg, Expiry: time.Hour}), money.ErrInvalidAmount)
}
