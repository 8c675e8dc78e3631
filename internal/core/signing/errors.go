package signing

import "fmt"

// SerializationError reports that an input could not be turned into a flat
// parameter mapping. Nothing is signed when it is returned.
type SerializationError struct {
	Source string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("signing: cannot serialize %s: %v", e.Source, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func serializationErr(source string, err error) *SerializationError {
	return &SerializationError{Source: source, Err: err}
}
