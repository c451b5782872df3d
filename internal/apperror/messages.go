package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// JSON-RPC gateway
	CodeRPCCallFailed:       "JSON-RPC call failed",
	CodeRPCConnectionFailed: "Failed to connect to JSON-RPC endpoint",
	CodeBlockNotFound:       "Block not found",
	CodeReceiptQueryFailed:  "Transaction receipt query failed",

	// Transaction submission
	CodeTxSubmitFailed:      "Transaction could not be sent",
	CodeTxSignFailed:        "Transaction signing failed",
	CodeWalletNotConfigured: "No wallet private key configured",
	CodeInvalidAmount:       "Invalid ETH amount",

	// Flashblocks stream
	CodeFlashblockDecodeFailed: "Flashblock payload could not be decoded",
	CodeStreamConnectionFailed: "Block stream connection failed",
	CodeUnsupportedCadence:     "Unsupported block cadence",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Race coordination
	CodeRaceNotActive: "No confirmation race is active",

	// Circuit breaker errors
	CodeCircuitOpen: "Circuit breaker is open",
}
