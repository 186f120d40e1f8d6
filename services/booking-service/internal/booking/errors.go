package booking

import "errors"

var (
	ErrSlotUnavailable          = errors.New("booking: slot unavailable")
	ErrConflict                 = errors.New("booking: concurrent booking in progress")
	ErrCancellationWindowClosed = errors.New("booking: cancellation window closed")
	ErrNotFound                 = errors.New("booking: not found")
)
