package shared

import "fmt"

// DeliveryLockKey serializes state transitions of one delivery.
func DeliveryLockKey(deliveryID int64) string {
	return fmt.Sprintf("delivery:%d", deliveryID)
}

// PaymentLockKey serializes payments recorded against one order.
func PaymentLockKey(orderID int64) string {
	return fmt.Sprintf("order:%d:payment", orderID)
}
