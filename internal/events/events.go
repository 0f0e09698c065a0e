package events

import (
	"encoding/json"
	"fmt"
	"time"

	"plant-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producer identifies this service in every envelope
const Producer = "plant-market-api"

const envelopeVersion = 1

// Event types published on the order topic
const (
	OrderPlaced        = "OrderPlaced"
	OrderCancelled     = "OrderCancelled"
	OrderStatusChanged = "OrderStatusChanged"
	OrderDeleted       = "OrderDeleted"
)

// Envelope wraps every event payload
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Item is one line of an order event
type Item struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPayload describes an order after a committed change
type OrderPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Items          []Item          `json:"items,omitempty"`
	ActorID        string          `json:"actor_id,omitempty"`
}

// NewEnvelope stamps payload with a fresh id and timestamp. The order id is
// the correlation id so consumers can group events per order.
func NewEnvelope(eventType, correlationID string, payload interface{}) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      Producer,
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}

// OrderEvent builds the envelope for a change to order
func OrderEvent(eventType string, order *domain.Order, previous domain.OrderStatus, actor domain.Actor) (Envelope, error) {
	payload := OrderPayload{
		OrderID:        order.ID.String(),
		UserID:         order.UserID.String(),
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		Total:          order.Total,
	}
	if actor.ID != uuid.Nil {
		payload.ActorID = actor.ID.String()
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, Item{
			ProductID: item.ProductID.String(),
			SellerID:  item.SellerID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return NewEnvelope(eventType, order.ID.String(), payload)
}
