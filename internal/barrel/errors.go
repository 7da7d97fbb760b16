package barrel

import (
	"errors"
	"fmt"
)

// ErrNotTracked is returned for paths the registry holds no entry for.
var ErrNotTracked = errors.New("entry is not tracked")

// AnalysisError reports an entry whose source could not be read or lexed.
type AnalysisError struct {
	Entry string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze entry %s: %v", e.Entry, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
