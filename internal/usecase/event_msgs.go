package usecase

import "time"

const (
	ActionAdd    = "add"
	ActionSet    = "set"
	ActionRemove = "remove"
)

// Published on RabbitMQ / Kafka after a cart mutation has been persisted.
type CartChangedMsg struct {
	CartID    string    `json:"cartId"`
	Username  string    `json:"username"`
	UserID    int64     `json:"userId,omitempty"`
	Action    string    `json:"action"` // add | set | remove
	ProductID int64     `json:"productId"`
	Quantity  int64     `json:"quantity"` // line quantity after the change, 0 on remove
	At        time.Time `json:"at"`
}
