package directory

import "fmt"

// Application error codes that mean the access token is no longer usable.
const (
	errCodeInvalidToken = 40014
	errCodeMissingToken = 41001
	errCodeExpiredToken = 42001
)

// AuthError is returned when the directory rejects our credentials.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("directory auth failed (errcode %d): %s", e.Code, e.Message)
}

// UpstreamError is an application-level failure reported by the directory,
// either through a non-zero errcode or a non-2xx HTTP status.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("directory %s: errcode %d: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("directory %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// TransportError wraps network and decoding failures.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func isTokenErrCode(code int) bool {
	switch code {
	case errCodeInvalidToken, errCodeMissingToken, errCodeExpiredToken:
		return true
	default:
		return false
	}
}
