package core

import "fmt"

// MaxMessageRunes caps every rendered outbound message at one SMS.
const MaxMessageRunes = 140

// systemPrefix brands system-generated messages. The same word is
// reserved inside user-chosen names.
const systemPrefix = "SMIRC"

// Outbound is a rendered message ready for the transport: a destination
// phone number and text already truncated to MaxMessageRunes.
type Outbound struct {
	To   string
	Text string
}

// RenderUser renders a conversation message as the other members see it.
func RenderUser(sender, body string) string {
	return Truncate(fmt.Sprintf("%s: %s", sender, body), MaxMessageRunes)
}

// RenderSystem renders a system message with the service prefix.
func RenderSystem(body string) string {
	return Truncate(fmt.Sprintf("%s: %s", systemPrefix, body), MaxMessageRunes)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
