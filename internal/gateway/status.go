package gateway

// NormalizedStatus is the gateway's raw status string collapsed into the fixed
// set the reconciliation engine understands.
type NormalizedStatus string

const (
	StatusPending    NormalizedStatus = "pending"
	StatusProcessing NormalizedStatus = "processing"
	StatusApproved   NormalizedStatus = "approved"
	StatusRejected   NormalizedStatus = "rejected"
	StatusExpired    NormalizedStatus = "expired"
	StatusUnknown    NormalizedStatus = "unknown"
)

// Normalize maps Mercado Pago payment statuses. Anything unrecognized comes
// back as unknown; the coordinator treats unknown as a closed, non-payable
// order.
func Normalize(raw string) NormalizedStatus {
	switch raw {
	case "pending":
		return StatusPending
	case "in_process", "in_mediation", "authorized":
		return StatusProcessing
	case "approved":
		return StatusApproved
	case "rejected":
		return StatusRejected
	case "cancelled", "expired":
		return StatusExpired
	default:
		return StatusUnknown
	}
}
