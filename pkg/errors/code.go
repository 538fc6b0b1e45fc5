package errors

// Service codes (AA)
const (
	// ServiceCommon is for common/base errors shared by all services.
	ServiceCommon = 0

	// ServiceSearch is for the chunked indexing and retrieval service.
	ServiceSearch = 20

	// ServiceThirdPartyLLM is for embedding and chat providers.
	ServiceThirdPartyLLM = 94
)

// Category codes (BB)
const (
	CategorySuccess   = 0
	CategoryRequest   = 1
	CategoryResource  = 4
	CategoryConflict  = 5
	CategoryRateLimit = 6
	CategoryInternal  = 7
	CategoryDatabase  = 8
	CategoryCache     = 9
	CategoryNetwork   = 10
	CategoryTimeout   = 11
	CategoryConfig    = 12
)

// MakeCode creates an error code from service, category, and sequence.
// Format: AABBCCC where AA=service, BB=category, CCC=sequence
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode parses an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// IsClientError checks if the error code indicates a client error (4xx).
func IsClientError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryRequest && category <= CategoryRateLimit
}

// IsServerError checks if the error code indicates a server error (5xx).
func IsServerError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryInternal && category <= CategoryConfig
}
