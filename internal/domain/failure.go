package domain

// GatewayFailure is one recipient's failure as reported by the push gateway
// multicast call.
type GatewayFailure struct {
	Token     string `json:"token"`
	ErrorCode string `json:"errorCode"`
}

// retryableCodes is the known subset of gateway error codes classified as
// transient. Every other code is treated as permanent.
var retryableCodes = map[string]bool{
	"server-unavailable": true,
	"internal-error":     true,
	"quota-exceeded":     true,
	"timeout":            true,
	"unavailable":        true,
	"batch-error":        true,
}

// IsRetryable classifies a gateway error code as retryable (transient) or
// permanent. Unknown codes are treated as permanent: an unrecognized code
// is assumed to mean the recipient/token is bad, not that the gateway is
// temporarily down.
func IsRetryable(errorCode string) bool {
	return retryableCodes[errorCode]
}

// PartitionFailures splits a batch result's failures into retryable and
// permanent buckets.
func PartitionFailures(failures []GatewayFailure) (retryable, permanent []GatewayFailure) {
	for _, f := range failures {
		if IsRetryable(f.ErrorCode) {
			retryable = append(retryable, f)
		} else {
			permanent = append(permanent, f)
		}
	}
	return retryable, permanent
}
