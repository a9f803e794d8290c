package orders

import "strconv"

const (
	TopicOrderPlaced   = "order.placed"
	TopicPaymentPaid   = "order.payment.paid"
	TopicPaymentFailed = "order.payment.failed"
	TopicStatusChanged = "order.status.changed"
)

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
