package redisx

import "time"

const (
	// Entry request waiting for authorization: pending_entry:{user_id} -> "1"
	KeyPendingEntry = "pending_entry:%d"

	// Paid user without an outstanding entry request: preauth:{user_id} -> order_id
	KeyPreauth = "preauth:%d"

	// Cache of the finalized order status: order_status:{order_id} -> status
	KeyOrderStatus = "order_status:%s"

	// Payer email override: user_email:{user_id} -> email (no TTL)
	KeyUserEmail = "user_email:%d"

	// Dedup of processed gateway notifications / consumed events:
	// dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPendingEntry = 7 * 24 * time.Hour
	TTLPreauth      = 7 * 24 * time.Hour
	TTLStatusCache  = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
