package raster

import "fmt"

// FormatError reports an unsupported image format or an image with unexpected dimensions
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("format error: %s", e.Reason)
	}
	return fmt.Sprintf("format error in %s: %s", e.Path, e.Reason)
}
