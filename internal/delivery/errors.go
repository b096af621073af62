package delivery

import "errors"

var (
	ErrNoMXHost        = errors.New("no mail exchanger reachable")
	ErrInvalidDKIMKey  = errors.New("invalid DKIM private key")
	ErrDNSLookupFailed = errors.New("dns lookup failed")
)
