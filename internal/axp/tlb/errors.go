package tlb

import "errors"

var (
	ErrAccessViolation = errors.New("tlb: access violation")
	ErrFaultOnRead     = errors.New("tlb: fault on read")
	ErrFaultOnWrite    = errors.New("tlb: fault on write")
	ErrFaultOnExecute  = errors.New("tlb: fault on execute")
)
