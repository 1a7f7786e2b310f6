package dieselshare

import "errors"

// Unavailable capability. Fatal to the subsystem being initialised, never retried.
var (
	ErrUnavailable   = errors.New("dieselshare: capability unavailable")
	ErrNoDevice      = errors.New("dieselshare: no suitable physical device")
	ErrNoQueueFamily = errors.New("dieselshare: no suitable queue family")
	ErrNoMemoryType  = errors.New("dieselshare: no suitable memory type")
)

// Broker failures. The caller decides between create and open.
var (
	ErrBroker      = errors.New("dieselshare: broker failure")
	ErrNoPublisher = errors.New("dieselshare: no publisher for name")
	ErrNameTaken   = errors.New("dieselshare: name already published")
	ErrDuplicate   = errors.New("dieselshare: handle duplication failed")
)

var (
	// ErrOutOfDate marks a presentation target that must be recreated before the next frame.
	ErrOutOfDate = errors.New("dieselshare: presentation target out of date")
	ErrBadFormat = errors.New("dieselshare: unsupported format")
	ErrClosed    = errors.New("dieselshare: closed")
	ErrWrongAPI  = errors.New("dieselshare: resource bound by another API")
)
