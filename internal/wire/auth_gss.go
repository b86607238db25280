package wire

import (
	"fmt"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
)

// GSSProvider implements GSSAPI/SSPI authentication (e.g. Kerberos) on
// behalf of a Session. Grounded on the teacher's krb.go Gss interface,
// kept as a pluggable registration point rather than a built-in
// implementation: the teacher's own concrete implementation (gssapi.go)
// depends on github.com/apcera/gssapi, a cgo-only binding to the host's
// GSSAPI library with no portable substitute offered anywhere else in the
// retrieval pack, so this driver ships the plugin seam and lets a caller
// supply their own provider the same way the teacher expects callers to
// import lib/pq/auth/kerberos and call RegisterGSSProvider from an init
// func.
type GSSProvider interface {
	GetInitToken(host string, service string) ([]byte, error)
	GetInitTokenFromSpn(spn string) ([]byte, error)
	Continue(inToken []byte) (done bool, outToken []byte, err error)
}

// NewGSSFunc constructs a GSSProvider for one connection attempt.
type NewGSSFunc func() (GSSProvider, error)

var newGSSProvider NewGSSFunc

// RegisterGSSProvider installs the factory authenticate uses when the
// server requests AuthReqGSS/AuthReqSSPI. Call it from an init func in the
// calling program after importing a concrete provider package.
func RegisterGSSProvider(f NewGSSFunc) { newGSSProvider = f }

// gssAuthenticate drives the GSSAPI token exchange: send an init token,
// then keep feeding the server's continuation tokens back to the provider
// until it reports done or the server confirms AuthReqOk.
func (s *Session) gssAuthenticate(cfg Config) error {
	if newGSSProvider == nil {
		return fmt.Errorf("wire: server requires GSSAPI authentication but no provider is registered (see RegisterGSSProvider)")
	}
	gss, err := newGSSProvider()
	if err != nil {
		return fmt.Errorf("wire: constructing GSS provider: %w", err)
	}
	tok, err := gss.GetInitToken(cfg.Host, cfg.KrbSrvName)
	if err != nil {
		return fmt.Errorf("wire: gss init token: %w", err)
	}

	for {
		w := NewWriteBuf(byte(proto.GSSResponse))
		w.Bytes(tok)
		s.send(w.Wrap(1))

		typ, body, err := s.recvMsg()
		if err != nil {
			return err
		}
		if proto.ResponseCode(typ) == proto.ErrorResponse {
			return &WireError{Fields: parseFields(body)}
		}
		if proto.ResponseCode(typ) != proto.AuthenticationRequest {
			return fmt.Errorf("wire: unexpected response %q during GSS exchange", typ)
		}
		switch proto.AuthCode(body.Int32()) {
		case proto.AuthReqOk:
			return nil
		case proto.AuthReqGSSCont:
			done, outTok, err := gss.Continue(body.Next(body.Len()))
			if err != nil {
				return fmt.Errorf("wire: gss continue: %w", err)
			}
			if done {
				return s.expectAuthOk()
			}
			tok = outTok
		default:
			return fmt.Errorf("wire: unexpected authentication code during GSS exchange")
		}
	}
}
