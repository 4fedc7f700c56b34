package billing

// ClassifyCheckout inspects a completed checkout session's metadata and
// returns the flow that produced it. Pure function of the metadata; no
// database or network calls.
//
// Rules are evaluated in order, first match wins:
//
//  1. guest markers (referenceId == "guest" or guest_checkout == "true")
//  2. source == "installment_checkout"
//  3. source == "custom_checkout"
//  4. everything else is native and already reconciled by the external
//     auth/billing plugin
//
// Guest is not mutually exclusive with installment/custom in the source
// metadata: a guest session can carry an installment or custom source.
// Callers therefore resolve identity first when guest is detected, then
// apply the source-specific reconciliation path with the resolved reference.
func ClassifyCheckout(md CheckoutMetadata) CheckoutFlow {
	if md.ReferenceID == "guest" || md.GuestCheckout == "true" {
		return FlowGuest
	}
	switch md.Source {
	case "installment_checkout":
		return FlowInstallment
	case "custom_checkout":
		return FlowCustom
	}
	return FlowNative
}
