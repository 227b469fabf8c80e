package ad

import "fmt"

// Rough per-record byte sizes used by Values() to report log memory
// use, mirroring original_source's tools/tapeValues.hpp byte accounting
// (one machine word per stored field, no struct-packing arithmetic).
const (
	statementSize = 4 + 8 + 8 // lhsID + chunk.Position (two ints)
	operandSize   = 8 + 4     // coeff + id
)

// TapeStatistics is the bookkeeping a tape reports on demand: per-log
// counts and byte totals, available at any point (recording or not) via
// Tape.Values(). It mirrors the original's tapeValues diagnostic tool,
// which prints exactly this kind of table for a CoDiPack tape.
type TapeStatistics struct {
	Statements     int
	StatementBytes int
	Operands       int
	OperandBytes   int
	ExternalFuncs  int

	AdjointEntries    int
	AdjointBytes      int
	MaxLiveIdentifier uint32
}

// String renders the statistics as a short aligned table, in the spirit
// of the original's plain-text tapeValues report.
func (s TapeStatistics) String() string {
	return fmt.Sprintf(
		"statements: %d (%d bytes)\noperands: %d (%d bytes)\nexternal functions: %d\nadjoint entries: %d (%d bytes)\nmax live identifier: %d\n",
		s.Statements, s.StatementBytes,
		s.Operands, s.OperandBytes,
		s.ExternalFuncs,
		s.AdjointEntries, s.AdjointBytes,
		s.MaxLiveIdentifier,
	)
}

// Total returns the combined byte footprint of every log.
func (s TapeStatistics) Total() int {
	return s.StatementBytes + s.OperandBytes + s.AdjointBytes
}
