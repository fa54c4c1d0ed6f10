package backtest

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid strategy or run parameters. It is reported
	// before any simulation work starts.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidParameters is the simulator's flavour of ErrConfiguration.
	ErrInvalidParameters = fmt.Errorf("%w: invalid run parameters", ErrConfiguration)

	ErrUnsupportedStrategy = errors.New("unsupported strategy type")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInvalidBars         = errors.New("invalid price bars")
)
