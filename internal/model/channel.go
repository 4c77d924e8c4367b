package model

// Channel identifies an outbound messaging channel.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// ValidChannel reports whether s is a known channel.
func ValidChannel(s string) bool {
	return s == ChannelSMS || s == ChannelEmail
}
