package wire

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
)

// negotiateSSL performs the SSLRequest handshake described in the
// PostgreSQL protocol: an 8-byte untyped request carrying a magic code,
// answered with a single 'S' or 'N' byte before any TLS record is sent.
// Grounded on the teacher's (*conn).ssl in conn.go, generalized to accept a
// pre-built *tls.Config (certificate/CA loading is the options layer's
// concern, not the wire layer's).
func (s *Session) negotiateSSL(cfg Config) error {
	if cfg.SSLMode == "disable" || cfg.SSLMode == "" || cfg.TLSConfig == nil {
		return nil
	}

	var req [8]byte
	binary.BigEndian.PutUint32(req[0:4], 8)
	binary.BigEndian.PutUint32(req[4:8], proto.NegotiateSSLCode)
	if _, err := s.conn.Write(req[:]); err != nil {
		return fmt.Errorf("wire: sending SSLRequest: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(s.conn, resp[:]); err != nil {
		return fmt.Errorf("wire: reading SSLRequest response: %w", err)
	}

	switch resp[0] {
	case 'S':
		s.conn = tls.Client(s.conn, cfg.TLSConfig)
		return nil
	case 'N':
		if cfg.SSLMode == "require" || cfg.SSLMode == "verify-ca" || cfg.SSLMode == "verify-full" {
			return fmt.Errorf("wire: SSL is not enabled on the server, but sslmode=%s requires it", cfg.SSLMode)
		}
		return nil
	default:
		return fmt.Errorf("wire: unexpected SSLRequest response byte %q", resp[0])
	}
}
