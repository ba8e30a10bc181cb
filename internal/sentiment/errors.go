package sentiment

import (
	"errors"
	"fmt"
)

var (
	// ErrClassifierUnavailable means the model capability could not be invoked.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrMalformedClassifierOutput means the model answered with an unknown
	// label or a confidence outside [0, 1].
	ErrMalformedClassifierOutput = errors.New("malformed classifier output")

	// ErrBlankText is returned by adapters that cannot score empty input.
	ErrBlankText = errors.New("blank text")

	errNoClassifier = errors.New("no classifier configured")
)

func unavailable(err error) error {
	if errors.Is(err, ErrClassifierUnavailable) || errors.Is(err, ErrMalformedClassifierOutput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedClassifierOutput, fmt.Sprintf(format, args...))
}
