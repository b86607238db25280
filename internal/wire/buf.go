// Package wire implements the PostgreSQL frontend/backend wire protocol:
// the "opaque client library" collaborator the driver specification treats
// as an external facility (connect/exec/exec_params/send_query/get_result/
// cancel/notice-receiver/result-introspection). It is grounded on the
// teacher's (github.com/lib/pq) conn.go, buf.go, ssl.go and scram.go, with
// the database/sql-specific glue stripped out: this package exposes a
// Session the rest of the driver drives directly, not a driver.Conn.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ReadBuf is a cursor over one already-length-delimited backend message
// body. Same shape as the teacher's readBuf: every accessor advances past
// what it consumed.
type ReadBuf []byte

func (b *ReadBuf) Int32() int {
	n := int(int32(binary.BigEndian.Uint32(*b)))
	*b = (*b)[4:]
	return n
}

func (b *ReadBuf) Uint32() uint32 {
	n := binary.BigEndian.Uint32(*b)
	*b = (*b)[4:]
	return n
}

// Int16 returns the next two bytes as an unsigned 16-bit integer, matching
// the teacher's comment that this field is unsigned despite the name.
func (b *ReadBuf) Int16() int {
	n := int(binary.BigEndian.Uint16(*b))
	*b = (*b)[2:]
	return n
}

func (b *ReadBuf) String() string {
	i := bytes.IndexByte(*b, 0)
	if i < 0 {
		panic(errors.New("wire: invalid message format; expected string terminator"))
	}
	s := (*b)[:i]
	*b = (*b)[i+1:]
	return string(s)
}

func (b *ReadBuf) Next(n int) []byte {
	v := (*b)[:n]
	*b = (*b)[n:]
	return v
}

func (b *ReadBuf) Byte() byte {
	return b.Next(1)[0]
}

func (b *ReadBuf) Len() int {
	return len(*b)
}

// WriteBuf accumulates one outgoing message body. Call Wrap once the body
// is complete to stamp in the 4-byte length prefix libpq expects.
type WriteBuf struct {
	buf []byte
}

// NewWriteBuf starts a new message with the given type byte (or 0 for the
// untyped startup/SSL-negotiation messages, which carry no type byte).
func NewWriteBuf(typ byte) *WriteBuf {
	b := &WriteBuf{buf: make([]byte, 0, 64)}
	if typ != 0 {
		b.buf = append(b.buf, typ)
	}
	b.buf = append(b.buf, 0, 0, 0, 0) // length placeholder
	return b
}

func (b *WriteBuf) Int32(n int) *WriteBuf {
	var x [4]byte
	binary.BigEndian.PutUint32(x[:], uint32(n))
	b.buf = append(b.buf, x[:]...)
	return b
}

func (b *WriteBuf) Int16(n int) *WriteBuf {
	var x [2]byte
	binary.BigEndian.PutUint16(x[:], uint16(n))
	b.buf = append(b.buf, x[:]...)
	return b
}

func (b *WriteBuf) String(s string) *WriteBuf {
	b.buf = append(append(b.buf, s...), 0)
	return b
}

func (b *WriteBuf) Byte(c byte) *WriteBuf {
	b.buf = append(b.buf, c)
	return b
}

func (b *WriteBuf) Bytes(v []byte) *WriteBuf {
	b.buf = append(b.buf, v...)
	return b
}

// Wrap finalizes the message, stamping the length prefix over bytes
// [lengthOffset:], and returns the bytes ready to write to the wire.
// lengthOffset is 1 for typed messages (length excludes the type byte) and
// 0 for untyped ones.
func (b *WriteBuf) Wrap(lengthOffset int) []byte {
	body := b.buf[lengthOffset:]
	if len(body) > 1<<31-1 {
		panic(fmt.Errorf("wire: message too large (%d bytes)", len(body)))
	}
	binary.BigEndian.PutUint32(body[:4], uint32(len(body)))
	return b.buf
}
