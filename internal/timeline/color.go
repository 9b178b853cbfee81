package timeline

import (
	"github.com/cespare/xxhash/v2"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
)

// StatusColor returns the fixed colour for statuses that override the
// hashed order colour. Statuses without an override report false.
func StatusColor(status domain.OrderStatus, overrides map[string]string) (string, bool) {
	switch status {
	case domain.OrderInProgress, domain.OrderHold, domain.OrderDone:
		c, ok := overrides[string(status)]
		return c, ok && c != ""
	case domain.OrderPlanned, domain.OrderScheduled, domain.OrderCancelled:
		return "", false
	}
	return "", false
}

// HashColor picks a stable palette entry for a work order.
func HashColor(workOrder string, palette []string) string {
	if len(palette) == 0 {
		return ""
	}
	return palette[xxhash.Sum64String(workOrder)%uint64(len(palette))]
}

func orderColor(o domain.Order, palette []string, overrides map[string]string) string {
	if c, ok := StatusColor(o.Status, overrides); ok {
		return c
	}
	return HashColor(o.WorkOrder, palette)
}
