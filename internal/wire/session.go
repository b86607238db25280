package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
)

// TransactionStatus mirrors the single byte the backend stamps onto every
// ReadyForQuery message; the connection manager's phase state machine
// (spec.md §4.1) is reconciled against this after every dispatched batch.
type TransactionStatus byte

const (
	TransIdle    TransactionStatus = 'I'
	TransInBlock TransactionStatus = 'T'
	TransInError TransactionStatus = 'E'
)

func (s TransactionStatus) String() string {
	switch s {
	case TransIdle:
		return "idle"
	case TransInBlock:
		return "in-transaction"
	case TransInError:
		return "in-error"
	default:
		return "unknown"
	}
}

// NoticeFunc receives a parsed NoticeResponse/ErrorResponse field list as it
// arrives, asynchronously with respect to whatever command provoked it.
type NoticeFunc func(fields Fields)

// Session is a single authenticated connection to a PostgreSQL-family
// backend: the wire-level realization of the spec's "client library"
// collaborator. It does no SQL-semantic work of its own — transaction
// phase tracking, cursor state, and parameter binding live one layer up,
// in the connection manager.
type Session struct {
	mu sync.Mutex

	conn    net.Conn
	r       *bufio.Reader
	scratch [512]byte

	backendPID int32
	backendKey int32

	params map[string]string // ParameterStatus values (client_encoding, server_version, ...)
	txn    TransactionStatus

	onNotice NoticeFunc

	closed bool
}

// Config carries the subset of connection options the wire layer itself
// consumes; the richer DSN option surface lives in the driver's options.go
// and is translated down to this before Dial is called.
type Config struct {
	Host, Port      string
	Database, User  string
	Password        string
	SSLMode         string // disable | allow | prefer | require | verify-ca | verify-full
	TLSConfig       *tls.Config
	ApplicationName string
	ConnectTimeout  int // seconds, 0 = no timeout
	KrbSrvName      string
	RuntimeParams   map[string]string
}

// Dial opens the TCP/unix-socket connection, negotiates TLS if requested,
// and runs the startup/auth handshake. Grounded on the teacher's
// Open/ssl/startup/auth sequence in conn.go.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	network, addr := dialTarget(cfg)

	var d net.Dialer
	rawConn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s %s: %w", network, addr, err)
	}

	s := &Session{conn: rawConn, params: make(map[string]string)}

	if network == "tcp" {
		if err := s.negotiateSSL(cfg); err != nil {
			rawConn.Close()
			return nil, err
		}
	}
	s.r = bufio.NewReader(s.conn)

	if err := s.startup(cfg); err != nil {
		s.conn.Close()
		return nil, err
	}
	return s, nil
}

func dialTarget(cfg Config) (network, addr string) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	if len(host) > 0 && host[0] == '/' {
		return "unix", host + "/.s.PGSQL." + port
	}
	return "tcp", net.JoinHostPort(host, port)
}

// SetNoticeReceiver installs the async notice hook; spec.md §6 lists this
// as a required accessor of the client-library surface.
func (s *Session) SetNoticeReceiver(fn NoticeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNotice = fn
}

// ParameterStatus returns the last value the backend reported for a
// run-time parameter (e.g. "standard_conforming_strings", "client_encoding").
func (s *Session) ParameterStatus(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[name]
}

// TransactionStatus returns the most recently observed ReadyForQuery status
// byte. The connection manager polls this after every dispatch to
// reconcile its own phase, per spec.md §4.1 — it never infers the phase
// from command text alone.
func (s *Session) TransactionStatus() TransactionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn
}

func (s *Session) BackendPID() int32 { return s.backendPID }

// Close sends Terminate and closes the socket. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// Best effort: a dead connection may not accept this write.
	func() {
		defer func() { recover() }()
		w := NewWriteBuf(byte(proto.Terminate))
		s.conn.Write(w.Wrap(1))
	}()
	return s.conn.Close()
}

// send writes one fully-wrapped message. Panics propagate a net.Error to
// the caller's recover point, matching the teacher's panic-and-recover
// shape for I/O errors deep in the send/recv path.
func (s *Session) send(buf []byte) {
	if _, err := s.conn.Write(buf); err != nil {
		panic(err)
	}
}

// recvMsg reads exactly one backend message: a type byte, a 4-byte length
// (inclusive of itself), and the remaining body.
func (s *Session) recvMsg() (typ byte, body ReadBuf, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("wire: %v", r)
			}
		}
	}()

	hdr := s.scratch[:5]
	if _, ioErr := io.ReadFull(s.r, hdr); ioErr != nil {
		return 0, nil, ioErr
	}
	typ = hdr[0]
	n := int(int32(be32(hdr[1:5]))) - 4
	if n < 0 {
		return 0, nil, fmt.Errorf("wire: negative message length")
	}
	var body2 []byte
	if n <= len(s.scratch) {
		body2 = s.scratch[:n]
	} else {
		body2 = make([]byte, n)
	}
	if _, ioErr := io.ReadFull(s.r, body2); ioErr != nil {
		return 0, nil, ioErr
	}
	return typ, ReadBuf(body2), nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// dispatchAsync handles the message types that can arrive at any point in
// the stream, independent of what command is outstanding: ParameterStatus,
// NoticeResponse, BackendKeyData, ReadyForQuery. It returns true if it
// consumed the message.
func (s *Session) dispatchAsync(typ byte, body ReadBuf) bool {
	switch proto.ResponseCode(typ) {
	case proto.ParameterStatus:
		name := body.String()
		val := body.String()
		s.mu.Lock()
		s.params[name] = val
		s.mu.Unlock()
		return true
	case proto.BackendKeyData:
		s.backendPID = body.Int32()
		s.backendKey = body.Int32()
		return true
	case proto.NoticeResponse:
		fields := parseFields(body)
		s.mu.Lock()
		fn := s.onNotice
		s.mu.Unlock()
		if fn != nil {
			fn(fields)
		}
		return true
	case proto.ReadyForQuery:
		s.mu.Lock()
		s.txn = TransactionStatus(body.Byte())
		s.mu.Unlock()
		return true
	}
	return false
}
