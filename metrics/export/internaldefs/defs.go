package internaldefs

import (
	chatauth "github.com/MrEthical07/chatauth"
)

// CounterDef binds a MetricID to its exported name and help text.
type CounterDef struct {
	ID   chatauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   chatauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in MetricID order.
var CounterDefs = []CounterDef{
	{ID: chatauth.MetricLoginPrompted, Name: "chatauth_login_prompted_total", Help: "Login prompts rendered into conversations."},
	{ID: chatauth.MetricLoginCancelled, Name: "chatauth_login_cancelled_total", Help: "Logins aborted by a cancellation word."},
	{ID: chatauth.MetricCachedTokenHit, Name: "chatauth_cached_token_hit_total", Help: "Dialogs satisfied by an existing cached token."},
	{ID: chatauth.MetricCallbackSuccess, Name: "chatauth_callback_success_total", Help: "Callbacks that committed a credential."},
	{ID: chatauth.MetricCallbackExchangeFailed, Name: "chatauth_callback_exchange_failed_total", Help: "Authorization codes rejected by the provider."},
	{ID: chatauth.MetricCallbackUnknownState, Name: "chatauth_callback_unknown_state_total", Help: "Callbacks with unresolvable state values."},
	{ID: chatauth.MetricCallbackThrottled, Name: "chatauth_callback_throttled_total", Help: "Callbacks denied by the endpoint throttle."},
	{ID: chatauth.MetricSessionWriteExhausted, Name: "chatauth_session_write_exhausted_total", Help: "Session writes abandoned after the retry budget."},
	{ID: chatauth.MetricMagicNumberIssued, Name: "chatauth_magic_number_issued_total", Help: "Magic numbers issued after a code exchange."},
	{ID: chatauth.MetricMagicNumberValidated, Name: "chatauth_magic_number_validated_total", Help: "Magic numbers echoed back correctly."},
	{ID: chatauth.MetricMagicNumberMismatch, Name: "chatauth_magic_number_mismatch_total", Help: "Magic number echoes that failed validation."},
	{ID: chatauth.MetricDialogResumed, Name: "chatauth_dialog_resumed_total", Help: "Suspended dialogs resumed by the callback."},
	{ID: chatauth.MetricLogout, Name: "chatauth_logout_total", Help: "Explicit logout operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: chatauth.MetricCallbackLatency, Name: "chatauth_callback_latency_seconds", Help: "Callback handling latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the OTel per-bucket gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
