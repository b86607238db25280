package pgodbc

import (
	"fmt"

	"github.com/psqlodbc-go/pgodbc/internal/wire"
)

// Code is this driver's own error classification, independent of the
// server's SQLSTATE — it tells a caller which recovery path applies.
// Grounded on spec.md §7's taxonomy (protocol-fatal / protocol-nonfatal /
// statement-logic / cursor-semantic / resource / client-request).
type Code int

const (
	CodeUnknown Code = iota

	// Protocol-fatal: the connection becomes dead.
	CodeConnectionServerReportedError
	CodeConnectionBackendCrazy
	CodeConnectionCommunicationError

	// Protocol-nonfatal.
	CodeConnectionServerReportedWarning

	// Statement-logic.
	CodeInvalidOption
	CodeInvalidCursorState
	CodeWrongParamNumber
	CodeRestrictedDataType
	CodeColumnOutOfRange

	// Cursor-semantic.
	CodeRowVersionChanged
	CodePosBeforeRecordset
	CodeInvalidCursorPosition
	CodeRowOutOfRange
	CodeFetchOutOfRange

	// Resource.
	CodeOutOfMemory

	// Client-request.
	CodeInvalidHandle
	CodeNotImplemented
)

// sqlstateOf gives each Code a best-effort SQLSTATE class/subclass so a
// caller that only understands SQLSTATE (the public ODBC surface this
// module's handle.go exposes) still gets a sensible 5-character code.
var sqlstateOf = map[Code]string{
	CodeConnectionServerReportedError:  "08006",
	CodeConnectionBackendCrazy:         "08S01",
	CodeConnectionCommunicationError:   "08S01",
	CodeConnectionServerReportedWarning: "01000",
	CodeInvalidOption:                  "HY092",
	CodeInvalidCursorState:             "24000",
	CodeWrongParamNumber:               "07002",
	CodeRestrictedDataType:             "HY004",
	CodeColumnOutOfRange:               "07009",
	CodeRowVersionChanged:              "01001",
	CodePosBeforeRecordset:             "HY109",
	CodeInvalidCursorPosition:          "HY109",
	CodeRowOutOfRange:                  "HY109",
	CodeFetchOutOfRange:                "HY106",
	CodeOutOfMemory:                    "HY001",
	CodeInvalidHandle:                  "HY000",
	CodeNotImplemented:                 "HYC00",
}

// Error is the error type every public entry point in this module returns.
// It carries the numeric Code, the derived SQLSTATE, a human message, the
// originating function name, and (when the error came from the server) the
// raw field set the wire layer handed back. Errors are stacked per handle —
// see diagList below — matching spec.md §7's "stacked per handle" rule.
type Error struct {
	Code     Code
	SQLSTATE string
	Message  string
	Function string
	Fields   wire.Fields // nil unless this came from a server ErrorResponse/NoticeResponse
}

func (e *Error) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("pgodbc: %s: %s (%s)", e.Function, e.Message, e.SQLSTATE)
	}
	return fmt.Sprintf("pgodbc: %s (%s)", e.Message, e.SQLSTATE)
}

// newError builds an Error whose SQLSTATE is the generic mapping for code.
func newError(fn string, code Code, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		SQLSTATE: sqlstateOf[code],
		Message:  fmt.Sprintf(format, args...),
		Function: fn,
	}
}

// errorFromWire translates a server ErrorResponse field set into an *Error,
// preferring the server's own SQLSTATE (field 'C') over the generic mapping
// table, per spec.md §7 ("Each error carries ... SQLSTATE").
func errorFromWire(fn string, we *wire.WireError) *Error {
	code := CodeConnectionServerReportedError
	state := we.Fields[wire.FieldCode]
	if state == "" {
		state = sqlstateOf[code]
	}
	msg := we.Fields[wire.FieldMessage]
	if msg == "" {
		msg = we.Error()
	}
	return &Error{
		Code:     code,
		SQLSTATE: state,
		Message:  msg,
		Function: fn,
		Fields:   we.Fields,
	}
}

// noticeAsWarning turns a NOTICE field set into a non-fatal *Error the way
// spec.md §4.1 step 2 describes ("notices upgrade the command's status ...
// the SQLSTATE of the first error is recorded on the result").
func noticeAsWarning(fn string, fields wire.Fields) *Error {
	state := fields[wire.FieldCode]
	if state == "" {
		state = sqlstateOf[CodeConnectionServerReportedWarning]
	}
	return &Error{
		Code:     CodeConnectionServerReportedWarning,
		SQLSTATE: state,
		Message:  fields[wire.FieldMessage],
		Function: fn,
		Fields:   fields,
	}
}

// diagList is the per-handle ordered diagnostic record list described in
// SPEC_FULL.md's "Supplemented features" (grounded on original_source/
// statement.c's SC_error_mem): unlike a bare *Error last-error slot, bulk
// positioned operations append one record per failed row here so the
// caller can retrieve all of them, matching spec.md §8's per-row
// accumulation invariant.
type diagList struct {
	records []*Error
}

func (d *diagList) push(e *Error) {
	d.records = append(d.records, e)
}

func (d *diagList) clear() {
	d.records = d.records[:0]
}

// last returns the most recently pushed record, or nil.
func (d *diagList) last() *Error {
	if len(d.records) == 0 {
		return nil
	}
	return d.records[len(d.records)-1]
}

func (d *diagList) all() []*Error {
	return d.records
}
