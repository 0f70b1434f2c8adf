package event

import (
	"github.com/shopspring/decimal"
)

// Type defines the kind of a user-visible notification.
type Type uint16

const (
	EvPriceAlert Type = iota + 1
	EvTempAlert
	EvHumidityAlert
	EvWeatherSim
	EvConnectivity
	EvFavorites
)

func (t Type) String() string {
	switch t {
	case EvPriceAlert:
		return "price_alert"
	case EvTempAlert:
		return "temp_alert"
	case EvHumidityAlert:
		return "humidity_alert"
	case EvWeatherSim:
		return "weather_alert"
	case EvConnectivity:
		return "connectivity"
	case EvFavorites:
		return "favorites"
	default:
		return "unknown"
	}
}

// Notification is a transient, non-blocking user-facing notice.
// Key is stable per (type, entity) so sinks can deduplicate repeats.
type Notification struct {
	Type    Type   `json:"type"`
	Key     string `json:"key"`
	Message string `json:"message"`
	TsUnixM int64  `json:"ts"`
}

// Notifier is the boundary to whatever displays notifications.
// Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// PriceChange is published by the store when a push update moves a price
// by more than the significance threshold.
type PriceChange struct {
	ID        string
	Name      string
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	DeltaPct  decimal.Decimal
	Direction string // "increased" or "decreased"
}
