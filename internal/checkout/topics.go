package checkout

const (
	TopicStockReserved     = "checkout.stock.reserved"
	TopicStockReleased     = "checkout.stock.released"
	TopicCheckoutCompleted = "checkout.completed"
	TopicCheckoutExpired   = "checkout.expired"
	TopicOrderPlaced       = "order.placed"
	TopicPaymentFailed     = "order.payment.failed"
)

// Key by checkout_id so all events of one session land on the same partition.
func PartitionKey(checkoutID string) []byte { return []byte(checkoutID) }
