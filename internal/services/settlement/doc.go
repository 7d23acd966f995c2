/*
Package settlement drives a booking payment from the fields posted by the
checkout page to a final status, and splits the collected money between the
platform and the hotel once the charge succeeds.

Entry points:

	// checkout page posted its payment fields
	outcome, err := svc.ProcessPayment(ctx, paymentID, fields)

	// a redirect-based source became chargeable (webhook or admin)
	result, err := svc.ChargeSource(ctx, paymentID, sourceID)

	// poll the processor for a payment parked on hold
	outcome, err := svc.Reconcile(ctx, paymentID)

Status transitions:

	pending -> on-hold | completed | failed
	on-hold -> completed | failed

completed and failed are final. Every entry point runs under a per-payment
lock, re-reads the payment inside it and persists each transition before the
lock is released, so a payment is never charged or split twice.

Error handling:

Processor failures never escape as errors. Validation problems and
definitive processor statuses fail the payment. A transport error while
charging parks the payment on hold for reconciliation. Transfer failures
are written to the payment log and leave the status alone. Errors returned
to the caller are infrastructure faults: unknown payment, storage, locking.
*/
package settlement
