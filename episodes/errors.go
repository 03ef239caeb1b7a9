package episodes

import "fmt"

// ConfigurationError reports an invalid sampler configuration or a dataset
// root whose layout does not match the configured variant.
type ConfigurationError struct {
	Path   string // offending path, if any
	Reason string
	Err    error // underlying cause, if any
}

func (e *ConfigurationError) Error() string {
	msg := "configuration: "
	if e.Path != "" {
		msg += e.Path + ": "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InsufficientDataError reports a class pool or image folder too small to
// satisfy the requested way/shot/query/batch sizes.
type InsufficientDataError struct {
	What string // "class folders" or a folder path
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s: need %d, have %d", e.What, e.Need, e.Have)
}

// UsageError reports an API call made out of order, such as printing the
// label map before any batch has been generated.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return "usage: " + e.Reason }
