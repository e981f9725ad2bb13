package capture

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return e.Backend + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Backend + ": " + e.Message
}

// CaptureError represents audio input failures
type CaptureError struct {
	Backend string `json:"backend"`
	Device  string `json:"device,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Capture error codes
const (
	ErrCodeDeviceNotFound = "DEVICE_NOT_FOUND"
	ErrCodeOpen           = "OPEN_FAILED"
	ErrCodeStart          = "START_FAILED"
	ErrCodeRead           = "READ_FAILED"
	ErrCodeInvalidFormat  = "INVALID_FORMAT"
)

// NewCaptureError creates a new capture error
func NewCaptureError(backend, device, code, message string, cause error) *CaptureError {
	return &CaptureError{
		Backend: backend,
		Device:  device,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
