package apperror

// Code represents a unique, machine-readable error code.
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Pipeline error taxonomy
const (
	CodeMalformedInput      Code = "MALFORMED_INPUT"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeOptimizationTimeout Code = "OPTIMIZATION_TIMEOUT"
	CodeDependencyCycle     Code = "DEPENDENCY_CYCLE"
)

// Rejection reason codes
const (
	CodeRiskLimitExceeded       Code = "RISK_LIMIT_EXCEEDED"
	CodeProfitFloorNotMet       Code = "PROFIT_FLOOR_NOT_MET"
	CodeExclusiveResource       Code = "EXCLUSIVE_RESOURCE"
	CodeBundleSizeExceeded      Code = "BUNDLE_SIZE_EXCEEDED"
	CodeUnprofitable            Code = "UNPROFITABLE"
	CodeExpired                 Code = "EXPIRED"
	CodeNoCandidates            Code = "NO_CANDIDATES"
	CodeQueueOverflow           Code = "QUEUE_OVERFLOW"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeBundleFrozen            Code = "BUNDLE_FROZEN"
)

// Infrastructure error codes
const (
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeRPCError            Code = "RPC_ERROR"

	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeJournalWrite     Code = "JOURNAL_WRITE_FAILED"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
