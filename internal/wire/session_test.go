package wire

import (
	"bufio"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
	"github.com/psqlodbc-go/pgodbc/oid"
)

// newPipeSession wires a Session directly to one end of a net.Pipe, the
// standard idiom for exercising protocol-layer code without a live
// backend. The other end plays the server in each test.
func newPipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return &Session{conn: client, r: bufio.NewReader(client), params: map[string]string{}}, server
}

func writeMsg(t *testing.T, conn net.Conn, typ byte, build func(*WriteBuf)) {
	t.Helper()
	w := NewWriteBuf(typ)
	build(w)
	_, err := conn.Write(w.Wrap(1))
	require.NoError(t, err)
}

func TestRecvMsgReadsOneLengthPrefixedMessage(t *testing.T) {
	sess, server := newPipeSession(t)

	go writeMsg(t, server, byte(proto.CommandComplete), func(w *WriteBuf) {
		w.String("SELECT")
	})

	typ, body, err := sess.recvMsg()
	require.NoError(t, err)
	require.Equal(t, byte(proto.CommandComplete), typ)
	require.Equal(t, "SELECT", body.String())
}

func TestRecvMsgPropagatesIOError(t *testing.T) {
	sess, server := newPipeSession(t)
	server.Close()

	_, _, err := sess.recvMsg()
	require.Error(t, err)
}

func TestStreamNextDecodesFullResultSequence(t *testing.T) {
	sess, server := newPipeSession(t)

	go func() {
		writeMsg(t, server, byte(proto.RowDescription), func(w *WriteBuf) {
			w.Int16(2)
			w.String("id")
			w.Int32(0)
			w.Int16(0)
			w.Int32(int(oid.T_int4))
			w.Int16(4)
			w.Int32(-1)
			w.Int16(0)
			w.String("name")
			w.Int32(0)
			w.Int16(0)
			w.Int32(int(oid.T_text))
			w.Int16(-1)
			w.Int32(-1)
			w.Int16(0)
		})
		writeMsg(t, server, byte(proto.DataRow), func(w *WriteBuf) {
			w.Int16(2)
			w.Int32(1)
			w.Bytes([]byte("1"))
			w.Int32(-1) // NULL
		})
		writeMsg(t, server, byte(proto.CommandComplete), func(w *WriteBuf) {
			w.String("SELECT 1")
		})
		writeMsg(t, server, byte(proto.ReadyForQuery), func(w *WriteBuf) {
			w.Byte('I')
		})
	}()

	st := sess.newStream()

	ev, err := st.Next()
	require.NoError(t, err)
	require.Equal(t, EventRowDescription, ev.Kind)
	require.Len(t, ev.RowDesc, 2)
	require.Equal(t, "id", ev.RowDesc[0].Name)
	require.Equal(t, "name", ev.RowDesc[1].Name)

	ev, err = st.Next()
	require.NoError(t, err)
	require.Equal(t, EventDataRow, ev.Kind)
	require.Equal(t, Value([]byte("1")), ev.Row[0])
	require.Nil(t, ev.Row[1])

	ev, err = st.Next()
	require.NoError(t, err)
	require.Equal(t, EventCommandComplete, ev.Kind)
	require.Equal(t, "SELECT 1", ev.CommandTag)

	ev, err = st.Next()
	require.NoError(t, err)
	require.Equal(t, EventReady, ev.Kind)
	require.Equal(t, TransIdle, ev.Ready)
}

func TestStreamNextSurfacesErrorResponse(t *testing.T) {
	sess, server := newPipeSession(t)

	go writeMsg(t, server, byte(proto.ErrorResponse), func(w *WriteBuf) {
		w.Byte(FieldSeverity)
		w.String("ERROR")
		w.Byte(FieldCode)
		w.String("42601")
		w.Byte(FieldMessage)
		w.String("syntax error")
		w.Byte(0)
	})

	st := sess.newStream()
	ev, err := st.Next()
	require.NoError(t, err)
	require.Equal(t, EventError, ev.Kind)
	require.Equal(t, "42601", ev.Err.Fields[FieldCode])
	require.Equal(t, "syntax error", ev.Err.Fields[FieldMessage])
}

func TestStreamNextSkipsAsyncMessagesAndUpdatesSessionState(t *testing.T) {
	sess, server := newPipeSession(t)

	go func() {
		writeMsg(t, server, byte(proto.ParameterStatus), func(w *WriteBuf) {
			w.String("client_encoding")
			w.String("UTF8")
		})
		writeMsg(t, server, byte(proto.BackendKeyData), func(w *WriteBuf) {
			w.Int32(4242)
			w.Int32(99)
		})
		writeMsg(t, server, byte(proto.EmptyQueryResponse), func(w *WriteBuf) {})
	}()

	st := sess.newStream()
	ev, err := st.Next()
	require.NoError(t, err)
	require.Equal(t, EventEmptyQuery, ev.Kind)

	require.Equal(t, "UTF8", sess.ParameterStatus("client_encoding"))
	require.EqualValues(t, 4242, sess.BackendPID())
}

func TestStreamNextDispatchesNoticeToReceiver(t *testing.T) {
	sess, server := newPipeSession(t)

	var got Fields
	sess.SetNoticeReceiver(func(f Fields) { got = f })

	go writeMsg(t, server, byte(proto.NoticeResponse), func(w *WriteBuf) {
		w.Byte(FieldSeverity)
		w.String("NOTICE")
		w.Byte(0)
	})

	st := sess.newStream()
	ev, err := st.Next()
	require.NoError(t, err)
	require.Equal(t, EventNotice, ev.Kind)
	require.Equal(t, "NOTICE", got[FieldSeverity])
}

func TestSimpleQueryWritesQueryMessage(t *testing.T) {
	sess, server := newPipeSession(t)

	done := make(chan struct{})
	var typ byte
	var body ReadBuf
	go func() {
		defer close(done)
		hdr := make([]byte, 5)
		if _, err := io.ReadFull(server, hdr); err != nil {
			return
		}
		typ = hdr[0]
		n := int(int32(be32(hdr[1:5]))) - 4
		b := make([]byte, n)
		if _, err := io.ReadFull(server, b); err != nil {
			return
		}
		body = ReadBuf(b)
	}()

	sess.SimpleQuery("SELECT 1")
	<-done

	require.Equal(t, byte(proto.Query), typ)
	require.Equal(t, "SELECT 1", body.String())
}
