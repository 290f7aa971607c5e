package temporal

// RetryNowSignalName cuts the current backoff short so an operator can retry a
// handoff as soon as the target intake is back.
const RetryNowSignalName = "retryNow"

type RetryNowSignal struct {
	Operator string `json:"operator,omitempty"`
}
