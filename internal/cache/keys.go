package cache

import "fmt"

// OrderKey is the cache key of a single order read.
func OrderKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

// MaterialReportKey is the cache key of an order's material report.
func MaterialReportKey(orderID int64) string {
	return fmt.Sprintf("orders:%d:materials", orderID)
}
