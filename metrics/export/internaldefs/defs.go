package internaldefs

import (
	goMFA "github.com/MrEthical07/goMFA"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "gomfa_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

var CounterDefs = []CounterDef{
	{ID: goMFA.MetricRegisterSuccess, Name: "gomfa_register_success_total", Help: "Accounts created."},
	{ID: goMFA.MetricRegisterDuplicate, Name: "gomfa_register_duplicate_total", Help: "Registrations rejected as duplicate usernames."},
	{ID: goMFA.MetricRegisterInvalid, Name: "gomfa_register_invalid_total", Help: "Registrations rejected by input policy."},
	{ID: goMFA.MetricLoginSuccess, Name: "gomfa_login_success_total", Help: "Successful password checks."},
	{ID: goMFA.MetricLoginFailure, Name: "gomfa_login_failure_total", Help: "Failed password checks."},
	{ID: goMFA.MetricSessionCreated, Name: "gomfa_session_created_total", Help: "Sessions established."},
	{ID: goMFA.MetricSessionRejected, Name: "gomfa_session_rejected_total", Help: "Session lookups for unknown, expired or malformed ids."},
	{ID: goMFA.MetricLogout, Name: "gomfa_logout_total", Help: "Sessions ended by logout."},
	{ID: goMFA.MetricTOTPSetup, Name: "gomfa_totp_setup_total", Help: "TOTP secrets provisioned."},
	{ID: goMFA.MetricTOTPSuccess, Name: "gomfa_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: goMFA.MetricTOTPFailure, Name: "gomfa_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: goMFA.MetricMFAReset, Name: "gomfa_mfa_reset_total", Help: "MFA resets."},
	{ID: goMFA.MetricMFAStepRequired, Name: "gomfa_mfa_step_required_total", Help: "Requests refused until the TOTP step is done."},
	{ID: goMFA.MetricTokenIssued, Name: "gomfa_token_issued_total", Help: "Bearer tokens issued."},
	{ID: goMFA.MetricTokenRejected, Name: "gomfa_token_rejected_total", Help: "Bearer tokens rejected."},
	{ID: goMFA.MetricStoreFailure, Name: "gomfa_store_failure_total", Help: "User store, session backend or crypto failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: goMFA.MetricValidateLatency, Name: "gomfa_validate_latency_seconds", Help: "Bearer token validation latency."},
}

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, in seconds.
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

// HistogramBoundValues mirrors HistogramBounds without the +Inf bucket.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, zero filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
