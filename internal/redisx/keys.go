package redisx

import "time"

const (
	// Callback dedup: dedup:{scope}:{id} (id = provider transaction id or event id)
	KeyDedup = "dedup:%s:%s"

	// OrderPaid published marker: event:order-paid:{order_id}
	KeyPaidEvent = "event:order-paid:%d"

	// Catalog cache: catalog:categories -> []Category JSON
	KeyCategories = "catalog:categories"

	// Catalog cache: catalog:product:{id} -> Product JSON
	KeyProduct = "catalog:product:%d"
)

var (
	TTLDedup      = 48 * time.Hour
	TTLCategories = 10 * time.Minute
	TTLProduct    = 5 * time.Minute
)
