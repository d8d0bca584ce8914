package market

import "errors"

var (
	errInvalidBar   = errors.New("bar violates OHLCV invariant")
	errUnknownTable = errors.New("unknown table")
)
