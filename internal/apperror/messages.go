package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeMalformedInput:      "Malformed snapshot skipped",
	CodeConstraintViolation: "Bundle violates hard constraints",
	CodeOptimizationTimeout: "Order optimization hit its time budget",
	CodeDependencyCycle:     "Dependency graph contains a cycle",

	CodeRiskLimitExceeded:       "Aggregate risk exceeds the configured maximum",
	CodeProfitFloorNotMet:       "Aggregate profit below the configured floor",
	CodeExclusiveResource:       "Items share a mutually exclusive resource",
	CodeBundleSizeExceeded:      "Bundle exceeds the maximum size",
	CodeUnprofitable:            "Net profit estimate is not positive",
	CodeExpired:                 "Opportunity expired",
	CodeNoCandidates:            "No eligible candidates in the pool",
	CodeQueueOverflow:           "Submission queue full, oldest entry dropped",
	CodeInvalidStatusTransition: "Status transition not allowed",
	CodeBundleFrozen:            "Bundle is frozen",

	CodeRPCConnectionFailed: "Failed to connect to RPC node",
	CodeRPCError:            "RPC call failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeStoreUnavailable: "Outcome store unavailable",
	CodeJournalWrite:     "Failed to write journal entry",

	CodeCircuitOpen: "Circuit breaker is open",
}
