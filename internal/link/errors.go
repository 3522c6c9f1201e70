package link

import "errors"

// Error classifications. Returned errors wrap one of these; match with errors.Is.
var (
	ErrInvalidPeer          = errors.New("link: invalid peer identifier")
	ErrAlreadyConnected     = errors.New("link: already connected")
	ErrSocketCreationFailed = errors.New("link: socket creation failed")
	ErrConnectFailed        = errors.New("link: connect failed")
	ErrNotConnected         = errors.New("link: not connected")
	ErrEmptyMessage         = errors.New("link: empty message")
	ErrSendFailed           = errors.New("link: send failed")
	ErrConnectionLost       = errors.New("link: connection lost")
	ErrCloseFailed          = errors.New("link: close failed")
	ErrClosed               = errors.New("link: manager closed")
)

// Describe returns the single user-facing line for err's classification.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPeer):
		return "Invalid MAC address format."
	case errors.Is(err, ErrAlreadyConnected):
		return "Already connected to a device. Please disconnect first."
	case errors.Is(err, ErrSocketCreationFailed):
		return "Could not create socket."
	case errors.Is(err, ErrConnectFailed):
		return "Failed to connect to device."
	case errors.Is(err, ErrNotConnected):
		return "No connected device found."
	case errors.Is(err, ErrEmptyMessage):
		return "Please enter a message to send."
	case errors.Is(err, ErrSendFailed):
		return "Failed to send message."
	case errors.Is(err, ErrConnectionLost):
		return "Connection lost."
	case errors.Is(err, ErrCloseFailed):
		return "Socket closure failed."
	case errors.Is(err, ErrClosed):
		return "Connection manager is shut down."
	default:
		return err.Error()
	}
}
