package orders

const (
	TopicPaymentCallback = "payment.callback"
	TopicStatusUpdated   = "status.updated"
	TopicCallbackDead    = "payment.callback.dlq"
)

// Partition key = order_id so all events for one order stay in one partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
