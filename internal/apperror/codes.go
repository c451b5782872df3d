package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain and game error codes
const (
	// JSON-RPC gateway
	CodeRPCCallFailed       Code = "RPC_CALL_FAILED"
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeBlockNotFound       Code = "BLOCK_NOT_FOUND"
	CodeReceiptQueryFailed  Code = "RECEIPT_QUERY_FAILED"

	// Transaction submission
	CodeTxSubmitFailed      Code = "TX_SUBMIT_FAILED"
	CodeTxSignFailed        Code = "TX_SIGN_FAILED"
	CodeWalletNotConfigured Code = "WALLET_NOT_CONFIGURED"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"

	// Flashblocks stream
	CodeFlashblockDecodeFailed Code = "FLASHBLOCK_DECODE_FAILED"
	CodeStreamConnectionFailed Code = "STREAM_CONNECTION_FAILED"
	CodeUnsupportedCadence     Code = "UNSUPPORTED_CADENCE"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Race coordination
	CodeRaceNotActive Code = "RACE_NOT_ACTIVE"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
