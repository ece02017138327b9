package lightning

import (
	"encoding/hex"
	"time"

	"github.com/breez/lnunify/money"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// Bolt11Details are the fields of a payment request backends sometimes omit
// from their responses.
type Bolt11Details struct {
	PaymentHash string
	Amount      *money.Amount
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func DecodeBolt11(bolt11 string, params *chaincfg.Params) (*Bolt11Details, error) {
	inv, err := zpay32.Decode(bolt11, params)
	if err != nil {
		return nil, err
	}

	d := &Bolt11Details{
		CreatedAt: inv.Timestamp,
		ExpiresAt: inv.Timestamp.Add(inv.Expiry()),
	}
	if inv.PaymentHash != nil {
		d.PaymentHash = hex.EncodeToString(inv.PaymentHash[:])
	}
	if inv.MilliSat != nil {
		a, err := money.FromLnwire(*inv.MilliSat)
		if err != nil {
			return nil, err
		}
		d.Amount = &a
	}

	return d, nil
}

// FillInvoiceTimes completes the timestamps of an invoice from its payment
// request, falling back to now and the requested expiry.
func FillInvoiceTimes(inv *Invoice, params *chaincfg.Params, expiry time.Duration) {
	if !inv.CreatedAt.IsZero() && !inv.ExpiresAt.IsZero() {
		return
	}

	d, err := DecodeBolt11(inv.Bolt11, params)
	if err == nil {
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = d.CreatedAt
		}
		if inv.ExpiresAt.IsZero() {
			inv.ExpiresAt = d.ExpiresAt
		}
		if inv.PaymentHash == "" {
			inv.PaymentHash = d.PaymentHash
		}
		return
	}

	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = inv.CreatedAt.Add(expiry)
	}
}
