package kernel

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfMemory   = errors.New("untyped region exhausted")
	ErrNotRetypable  = errors.New("kind cannot be retyped")
	ErrUnbacked      = errors.New("physical range not backed by memory")
	ErrStaleHandle   = errors.New("use of released capability")
	ErrBadImage      = errors.New("malformed rinit image")
	ErrSegmentSize   = errors.New("loadable segment filesz != memsz")
	ErrNoEntry       = errors.New("rinit image has no entry point")
	ErrNoMemory      = errors.New("no free memory region")
	ErrNotMappable   = errors.New("capability cannot be mapped")
	ErrAlreadyMapped = errors.New("virtual address already mapped")
)

// BootError aborts kernel initialisation.
type BootError struct {
	Stage string
	Err   error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("boot: %s: %v", e.Stage, e.Err)
}

func (e *BootError) Unwrap() error { return e.Err }

func bootErr(stage string, err error) error {
	return &BootError{Stage: stage, Err: err}
}
