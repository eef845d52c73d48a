package types

// Topics carried by the outbox and the internal event bus
const (
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentRefunded  = "payment.refunded"
	TopicInvoiceIssued    = "invoice.issued"
)
