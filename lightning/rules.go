package lightning

import "strings"

// PaymentRule maps a fragment of a backend error message to a payment
// result. Matching is case insensitive.
type PaymentRule struct {
	Match  string
	Result PaymentResult
}

type ChannelOpenRule struct {
	Match  string
	Result ChannelOpenResult
}

func MatchPaymentRule(msg string, rules []PaymentRule) (PaymentResult, bool) {
	msg = strings.ToLower(msg)
	for _, r := range rules {
		if strings.Contains(msg, strings.ToLower(r.Match)) {
			return r.Result, true
		}
	}

	return PaymentUnknown, false
}

func MatchChannelOpenRule(msg string, rules []ChannelOpenRule) (ChannelOpenResult, bool) {
	msg = strings.ToLower(msg)
	for _, r := range rules {
		if strings.Contains(msg, strings.ToLower(r.Match)) {
			return r.Result, true
		}
	}

	return ChannelOpenError, false
}

// ContainsAny reports whether msg contains any of the fragments, ignoring
// case.
func ContainsAny(msg string, fragments ...string) bool {
	msg = strings.ToLower(msg)
	for _, f := range fragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return true
		}
	}

	return false
}
