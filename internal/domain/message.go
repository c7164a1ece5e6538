package domain

// Flow names the two telemetry directions. They tag archives, metrics and
// message headers.
const (
	FlowHindcast = "hindcast"
	FlowForecast = "forecast"
)

// Message is one publishable record bound for the streaming topic: a
// timestamp key, a JSON row payload and transport headers. The domain does
// not know which broker carries it.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
