// internal/orders/builders.go
package orders

import (
	"amnetsync/internal/amnet"
)

// Payload builders. Each assembles the upstream mutation for one line-item
// kind from the order, payment, and billing data. All are pure.

func buildPaymentTrail(order *Order, item *LineItem) amnet.PaymentTrail {
	return amnet.PaymentTrail{
		PayorName:       order.Billing.PayorName,
		CardNumber:      maskedCard(order.Payment.CardLast4),
		CardExpiry:      order.Payment.CardExpiry,
		ReferenceCode:   order.Payment.ReferenceCode,
		AuthCode:        order.Payment.AuthCode,
		TransactionDate: order.Payment.TransactionDate.Format("2006-01-02"),
		CCAmount:        item.CCAmount(),
	}
}

func maskedCard(last4 string) string {
	if last4 == "" {
		return ""
	}
	return "************" + last4
}

func buildEventRegistration(order *Order, item *LineItem) amnet.EventRegistrationPayload {
	return amnet.EventRegistrationPayload{
		PersonID:     item.PersonID,
		EventCode:    item.EventCode,
		EventYear:    item.EventYear,
		SessionCodes: item.SessionCodes,
		Payment:      buildPaymentTrail(order, item),
	}
}

func buildProductSale(order *Order, item *LineItem) amnet.ProductSalePayload {
	return amnet.ProductSalePayload{
		PersonID:    item.PersonID,
		ProductCode: item.ProductCode,
		Payment:     buildPaymentTrail(order, item),
	}
}

func buildDuesPayment(order *Order, item *LineItem) amnet.DuesPaymentPayload {
	return amnet.DuesPaymentPayload{
		PersonID: item.PersonID,
		DuesYear: item.DuesYear,
		Payment:  buildPaymentTrail(order, item),
	}
}

func buildContribution(order *Order, item *LineItem) amnet.ContributionPayload {
	return amnet.ContributionPayload{
		PersonID: item.PersonID,
		FundCode: item.FundCode,
		Payment:  buildPaymentTrail(order, item),
	}
}

func buildPeerReviewPayment(order *Order, item *LineItem) amnet.PeerReviewPaymentPayload {
	return amnet.PeerReviewPaymentPayload{
		PersonID:   item.PersonID,
		FirmNumber: item.FirmNumber,
		Payment:    buildPaymentTrail(order, item),
	}
}
