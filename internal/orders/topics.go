package orders

const (
	TopicPaymentApproved = "payment.approved"
	TopicPaymentClosed   = "payment.closed"
	TopicAccessGranted   = "access.granted"
	TopicGrantFailed     = "access.grant.failed"
)

// Partition key = order_id so every event of one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
