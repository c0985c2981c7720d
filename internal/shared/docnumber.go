package shared

import (
	"fmt"
	"time"
)

// Document number prefixes.
const (
	OrderPrefix    = "ORD"
	DeliveryPrefix = "DEL"
)

// DocNumber renders <PREFIX>-<epoch millis>. Numbers are not unique under
// concurrent creation within the same millisecond; the schema does not
// require them to be.
func DocNumber(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, at.UnixMilli())
}
