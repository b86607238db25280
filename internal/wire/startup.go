package wire

import (
	"fmt"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
)

// startup sends the StartupMessage and drains the handshake until
// ReadyForQuery, dispatching auth challenges as they arrive. Grounded on
// the teacher's (*conn).startup/auth in conn.go.
func (s *Session) startup(cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("wire: startup: %v", r)
			}
		}
	}()

	w := NewWriteBuf(0)
	w.Int32(proto.ProtocolVersion30)
	w.String("user").String(cfg.User)
	w.String("database").String(cfg.Database)
	if cfg.ApplicationName != "" {
		w.String("application_name").String(cfg.ApplicationName)
	}
	for k, v := range cfg.RuntimeParams {
		w.String(k).String(v)
	}
	w.String("")
	s.send(w.Wrap(0))

	for {
		typ, body, err := s.recvMsg()
		if err != nil {
			return err
		}
		if s.dispatchAsync(typ, body) {
			if proto.ResponseCode(typ) == proto.ReadyForQuery {
				return nil
			}
			continue
		}
		switch proto.ResponseCode(typ) {
		case proto.AuthenticationRequest:
			if err := s.authenticate(body, cfg); err != nil {
				return err
			}
		case proto.ErrorResponse:
			return &WireError{Fields: parseFields(body)}
		default:
			return fmt.Errorf("wire: unexpected message %q during startup", typ)
		}
	}
}

// WireError wraps a raw ErrorResponse field set for callers above this
// package (the driver's diag.go) to translate into a rich *Error; wire
// itself does not know about SQLSTATE taxonomy.
type WireError struct {
	Fields Fields
}

func (e *WireError) Error() string {
	if e == nil {
		return "wire: error"
	}
	if m, ok := e.Fields[FieldMessage]; ok {
		return "wire: " + m
	}
	return "wire: server reported an error"
}
