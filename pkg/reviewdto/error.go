package reviewdto

// Error codes returned by the HTTP API.
const (
	CodeBadRequest      = "bad_request"
	CodeIllegalMove     = "illegal_move"
	CodeInvalidPosition = "invalid_position"
	CodeEmptyGame       = "empty_game"
	CodeInvalidGame     = "invalid_game"
	CodeIndexOutOfRange = "index_out_of_range"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "review service error"
}
