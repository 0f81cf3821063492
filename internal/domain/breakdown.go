package domain

// Breakdown is the split of a booking price between credit balance and mobile money.
type Breakdown struct {
	TotalAmount  int64         `json:"total_amount"`
	CreditAmount int64         `json:"credit_amount"`
	MobileAmount int64         `json:"mobile_amount"`
	MobileMethod PaymentMethod `json:"mobile_method,omitempty"`
	Method       PaymentMethod `json:"-"`
}

// ComputeBreakdown splits total across the customer's credit balance and a mobile wallet.
// When credit is not used (or the balance is empty) Method is mobileMethod, which may be empty;
// callers pick their own fallback in that case.
func ComputeBreakdown(total, creditBalance int64, useCredit bool, mobileMethod PaymentMethod) (Breakdown, error) {
	if total < 0 || (mobileMethod != "" && !mobileMethod.IsMobile()) {
		return Breakdown{}, ErrInvalidInput
	}

	if !useCredit || creditBalance <= 0 {
		return Breakdown{
			TotalAmount:  total,
			MobileAmount: total,
			MobileMethod: mobileMethod,
			Method:       mobileMethod,
		}, nil
	}

	if creditBalance >= total {
		return Breakdown{
			TotalAmount:  total,
			CreditAmount: total,
			Method:       MethodCredit,
		}, nil
	}

	if mobileMethod == "" {
		return Breakdown{}, ErrMobileRequired
	}
	return Breakdown{
		TotalAmount:  total,
		CreditAmount: creditBalance,
		MobileAmount: total - creditBalance,
		MobileMethod: mobileMethod,
		Method:       MethodCreditAndMobile,
	}, nil
}
