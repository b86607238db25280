package wire

import (
	"fmt"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
	"github.com/psqlodbc-go/pgodbc/oid"
)

// FieldDescription is one column of a RowDescription message. TableOID and
// Column are zero when the server cannot attribute the column to a single
// base table (expressions, function results); when non-zero they let the
// catalog layer (catalog.go) skip a pg_attribute round trip, per spec.md
// §4.4's "protocol column-describe ... refines" note.
type FieldDescription struct {
	Name     string
	TableOID oid.Oid
	Column   int16
	Type     oid.Oid
	TypeLen  int16
	TypeMod  int32
	Format   int16
}

// Value is one field of a DataRow; nil means SQL NULL.
type Value []byte

// EventKind tags what a Stream.Next call returned.
type EventKind int

const (
	EventRowDescription EventKind = iota
	EventDataRow
	EventCommandComplete
	EventEmptyQuery
	EventError
	EventNotice
	EventReady // terminal: the stream is done
)

// Event is one message the query executor needs to react to, translated
// from the raw wire representation. Unrelated async messages
// (ParameterStatus, plain NoticeResponse already forwarded to the notice
// receiver) are swallowed by Stream.Next and never surface here, except
// EventNotice which is also surfaced so the executor can attribute it to
// the in-progress result per spec.md §4.1 step 2.
type Event struct {
	Kind       EventKind
	RowDesc    []FieldDescription
	Row        []Value
	CommandTag string
	Err        *WireError
	Notice     Fields
	Ready      TransactionStatus
}

// Stream drains the messages produced by one dispatched batch (which may
// itself contain several SQL statements separated by ';', each yielding its
// own RowDescription/rows/CommandComplete sequence before the final
// ReadyForQuery). This is the "send_query / get_result" streaming variant
// of spec.md §6.
type Stream struct {
	sess    *Session
	lastRD  []FieldDescription
	pending *Event
}

func (s *Session) newStream() *Stream { return &Stream{sess: s} }

// Next returns the next event. After it returns an Event with Kind ==
// EventReady, the stream is exhausted and must not be called again.
func (st *Stream) Next() (Event, error) {
	if st.pending != nil {
		ev := *st.pending
		st.pending = nil
		return ev, nil
	}
	for {
		typ, body, err := st.sess.recvMsg()
		if err != nil {
			return Event{}, err
		}
		switch proto.ResponseCode(typ) {
		case proto.ParameterStatus, proto.BackendKeyData:
			st.sess.dispatchAsync(typ, body)
			continue
		case proto.ReadyForQuery:
			st.sess.dispatchAsync(typ, body)
			return Event{Kind: EventReady, Ready: st.sess.TransactionStatus()}, nil
		case proto.NoticeResponse:
			fields := parseFields(body)
			st.sess.mu.Lock()
			fn := st.sess.onNotice
			st.sess.mu.Unlock()
			if fn != nil {
				fn(fields)
			}
			return Event{Kind: EventNotice, Notice: fields}, nil
		case proto.ErrorResponse:
			return Event{Kind: EventError, Err: &WireError{Fields: parseFields(body)}}, nil
		case proto.EmptyQueryResponse:
			return Event{Kind: EventEmptyQuery}, nil
		case proto.CommandComplete:
			return Event{Kind: EventCommandComplete, CommandTag: body.String()}, nil
		case proto.RowDescription:
			rd := parseRowDescription(body)
			st.lastRD = rd
			return Event{Kind: EventRowDescription, RowDesc: rd}, nil
		case proto.DataRow:
			n := body.Int16()
			row := make([]Value, n)
			for i := range row {
				l := body.Int32()
				if l == -1 {
					row[i] = nil
					continue
				}
				row[i] = Value(body.Next(l))
			}
			return Event{Kind: EventDataRow, Row: row}, nil
		case proto.ParseComplete, proto.BindComplete, proto.CloseComplete, proto.NoData,
			proto.ParameterDescription:
			continue
		default:
			return Event{}, fmt.Errorf("wire: unexpected message %q mid-stream", typ)
		}
	}
}

func parseRowDescription(body ReadBuf) []FieldDescription {
	n := body.Int16()
	fields := make([]FieldDescription, n)
	for i := range fields {
		fields[i].Name = body.String()
		fields[i].TableOID = oid.Oid(body.Uint32())
		fields[i].Column = int16(body.Int16())
		fields[i].Type = oid.Oid(body.Uint32())
		fields[i].TypeLen = int16(body.Int16())
		fields[i].TypeMod = int32(body.Int32())
		fields[i].Format = int16(body.Int16())
	}
	return fields
}

// SimpleQuery dispatches one or more ';'-separated statements using the
// simple query sub-protocol (message type 'Q'); results always come back
// as text. Grounded on the teacher's simpleQuery/simpleExec in conn.go,
// merged into one streaming call.
func (s *Session) SimpleQuery(sql string) *Stream {
	w := NewWriteBuf(byte(proto.Query))
	w.String(sql)
	s.send(w.Wrap(1))
	return s.newStream()
}

// Param is one bound parameter for the extended query protocol.
type Param struct {
	OID    oid.Oid
	Value  []byte // nil for SQL NULL
	Binary bool
}

// ExtendedQuery runs one statement through Parse/Bind/Describe/Execute/Sync
// using the unnamed statement and unnamed portal, mirroring the teacher's
// prepareToSimpleStmt + (*stmt).exec in conn.go but collapsed into a single
// round trip the way modern pgx-style drivers pipeline it.
func (s *Session) ExtendedQuery(sql string, params []Param, resultBinary bool) *Stream {
	paramOIDs := make([]oid.Oid, len(params))
	for i, p := range params {
		paramOIDs[i] = p.OID
	}

	w := NewWriteBuf(byte(proto.Parse))
	w.String("") // unnamed statement
	w.String(sql)
	w.Int16(len(paramOIDs))
	for _, o := range paramOIDs {
		w.Int32(int(o))
	}
	s.send(w.Wrap(1))

	w = NewWriteBuf(byte(proto.Bind))
	w.String("") // unnamed portal
	w.String("") // unnamed statement
	w.Int16(len(params))
	for _, p := range params {
		if p.Binary {
			w.Int16(1)
		} else {
			w.Int16(0)
		}
	}
	w.Int16(len(params))
	for _, p := range params {
		if p.Value == nil {
			w.Int32(-1)
		} else {
			w.Int32(len(p.Value))
			w.Bytes(p.Value)
		}
	}
	if resultBinary {
		w.Int16(1)
		w.Int16(1)
	} else {
		w.Int16(0)
	}
	s.send(w.Wrap(1))

	w = NewWriteBuf(byte(proto.Describe))
	w.Byte('P')
	w.String("")
	s.send(w.Wrap(1))

	w = NewWriteBuf(byte(proto.Execute))
	w.String("")
	w.Int32(0)
	s.send(w.Wrap(1))

	s.send(NewWriteBuf(byte(proto.Sync)).Wrap(1))

	return s.newStream()
}

// CancelInfo returns the backend PID and secret key reported in
// BackendKeyData, the pair an out-of-band cancel request carries. This
// package does not send the cancel request itself.
func (s *Session) CancelInfo() (pid, key int32) {
	return s.backendPID, s.backendKey
}
