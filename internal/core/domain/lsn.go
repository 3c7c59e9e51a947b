package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// LSN is a position in the write-ahead log.
type LSN uint64

// InvalidLSN is the zero LSN; no record is ever written there.
const InvalidLSN LSN = 0

// String formats the LSN as two 32-bit hex halves, e.g. "0/16B3748".
func (l LSN) String() string {
	return fmt.Sprintf("%X/%X", uint32(l>>32), uint32(l))
}

// IsValid reports whether the LSN is not InvalidLSN.
func (l LSN) IsValid() bool {
	return l != InvalidLSN
}

// ParseLSN parses an LSN in "hi/lo" hex form, or a plain decimal integer.
func ParseLSN(s string) (LSN, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InvalidLSN, ErrInvalidArgument.WithDetails("empty lsn")
	}

	hi, lo, ok := strings.Cut(s, "/")
	if !ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return InvalidLSN, ErrInvalidArgument.WithDetailsf("lsn %q", s).WithCause(err)
		}
		return LSN(v), nil
	}

	h, err := strconv.ParseUint(hi, 16, 32)
	if err != nil {
		return InvalidLSN, ErrInvalidArgument.WithDetailsf("lsn %q", s).WithCause(err)
	}
	l, err := strconv.ParseUint(lo, 16, 32)
	if err != nil {
		return InvalidLSN, ErrInvalidArgument.WithDetailsf("lsn %q", s).WithCause(err)
	}
	return LSN(h<<32 | l), nil
}
