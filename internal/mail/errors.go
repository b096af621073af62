package mail

import "errors"

var ErrUnknownEncoding = errors.New("unknown message encoding")
