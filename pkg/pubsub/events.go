package pubsub

import "strings"

// Channels carrying domain events, one per aggregate kind.
const (
	ChannelProduct = "events:product"
	ChannelUser    = "events:user"

	// ChannelPattern matches every domain event channel.
	ChannelPattern = "events:*"
)

// Product event types.
const (
	EventProductCreated      = "product.created"
	EventProductUpdated      = "product.updated"
	EventProductStockChanged = "product.stock_changed"
	EventProductDeleted      = "product.deleted"
)

// User event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Channels lists every channel the service publishes on.
func Channels() []string {
	return []string{ChannelProduct, ChannelUser}
}

// StockChangedPayload is published when a product's stock moves.
type StockChangedPayload struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	Available bool   `json:"available"`
}

// DeletedPayload is published when an aggregate is removed.
type DeletedPayload struct {
	ID string `json:"id"`
}

// channelToTopic maps a channel onto a Kafka topic name.
//
//	"events:product" → "events-product"
func channelToTopic(channel string) string {
	return strings.ReplaceAll(channel, ":", "-")
}

// patternToTopicRegex maps a glob-style pattern onto a Kafka topic regex.
//
//	"events:*" → "^events-.*"
func patternToTopicRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range channelToTopic(pattern) {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
