package media

import "fmt"

// ProbeError indicates ffprobe failed or returned unusable metadata.
type ProbeError struct {
	Location string
	Output   string
	Err      error
}

func (e *ProbeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("probe failed for %s: %v: %s", e.Location, e.Err, e.Output)
	}
	return fmt.Sprintf("probe failed for %s: %v", e.Location, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TrimError indicates a trim operation failed: missing input, invalid
// range, or a toolchain error.
type TrimError struct {
	Input  string
	Output string
	Err    error
}

func (e *TrimError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("trim failed for %s: %v: %s", e.Input, e.Err, e.Output)
	}
	return fmt.Sprintf("trim failed for %s: %v", e.Input, e.Err)
}

func (e *TrimError) Unwrap() error { return e.Err }

// ConcatError indicates a concatenation failed: empty input list or a
// toolchain error joining the files.
type ConcatError struct {
	Inputs []string
	Output string
	Err    error
}

func (e *ConcatError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("concatenate failed for %d inputs: %v: %s", len(e.Inputs), e.Err, e.Output)
	}
	return fmt.Sprintf("concatenate failed for %d inputs: %v", len(e.Inputs), e.Err)
}

func (e *ConcatError) Unwrap() error { return e.Err }
