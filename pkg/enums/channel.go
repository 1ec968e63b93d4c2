package enums

import "fmt"

// ChannelType identifies the external storefront kind behind a channel.
type ChannelType string

const (
	ChannelTypeWooCommerce ChannelType = "woocommerce"
)

var validChannelTypes = []ChannelType{
	ChannelTypeWooCommerce,
}

// IsValid reports whether the value matches a supported channel type.
func (t ChannelType) IsValid() bool {
	for _, candidate := range validChannelTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseChannelType converts raw input into ChannelType.
func ParseChannelType(value string) (ChannelType, error) {
	for _, candidate := range validChannelTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel type %q", value)
}

// ChannelStatus maps to the channel_status_enum enum in Postgres.
type ChannelStatus string

const (
	ChannelStatusPending      ChannelStatus = "pending"
	ChannelStatusConnected    ChannelStatus = "connected"
	ChannelStatusDisconnected ChannelStatus = "disconnected"
)

var validChannelStatuses = []ChannelStatus{
	ChannelStatusPending,
	ChannelStatusConnected,
	ChannelStatusDisconnected,
}

// IsValid reports whether the value matches the canonical channel status enum.
func (s ChannelStatus) IsValid() bool {
	for _, candidate := range validChannelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
