package reconcile

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/kafkax"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
)

// EventPublisher receives lifecycle events from the coordinator. Publishing is
// fire-and-forget; reconciliation never blocks on the event stream.
type EventPublisher interface {
	PaymentApproved(o *orders.Order)
	PaymentClosed(o *orders.Order, gwStatus gateway.NormalizedStatus)
	AccessGranted(o *orders.Order)
	GrantFailed(o *orders.Order, reason string)
}

// KafkaEvents publishes envelopes onto one topic per event type.
type KafkaEvents struct {
	Approved *kafkax.Producer
	Closed   *kafkax.Producer
	Granted  *kafkax.Producer
	Failed   *kafkax.Producer
	Service  string
}

var _ EventPublisher = (*KafkaEvents)(nil)

func (e *KafkaEvents) publish(p *kafkax.Producer, eventType, orderID string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *KafkaEvents) PaymentApproved(o *orders.Order) {
	e.publish(e.Approved, orders.EventPaymentApproved, o.ID, orders.PaymentApprovedPayload{
		OrderID:          o.ID,
		UserID:           o.UserID,
		PlanID:           o.PlanID,
		GatewayPaymentID: o.GatewayPaymentID,
		AmountCents:      o.AmountCents,
	})
}

func (e *KafkaEvents) PaymentClosed(o *orders.Order, gwStatus gateway.NormalizedStatus) {
	e.publish(e.Closed, orders.EventPaymentClosed, o.ID, orders.PaymentClosedPayload{
		OrderID:          o.ID,
		UserID:           o.UserID,
		GatewayPaymentID: o.GatewayPaymentID,
		FinalStatus:      o.Status,
		GatewayStatus:    string(gwStatus),
	})
}

func (e *KafkaEvents) AccessGranted(o *orders.Order) {
	e.publish(e.Granted, orders.EventAccessGranted, o.ID, orders.AccessGrantedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		PlanID:  o.PlanID,
	})
}

func (e *KafkaEvents) GrantFailed(o *orders.Order, reason string) {
	e.publish(e.Failed, orders.EventGrantFailed, o.ID, orders.GrantFailedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Reason:  reason,
	})
}

// NopEvents drops everything; used in tests and when Kafka is not configured.
type NopEvents struct{}

var _ EventPublisher = NopEvents{}

func (NopEvents) PaymentApproved(*orders.Order)                         {}
func (NopEvents) PaymentClosed(*orders.Order, gateway.NormalizedStatus) {}
func (NopEvents) AccessGranted(*orders.Order)                           {}
func (NopEvents) GrantFailed(*orders.Order, string)                     {}
