package pgodbc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/psqlodbc-go/pgodbc/internal/pgutil"
	"github.com/psqlodbc-go/pgodbc/internal/wire"
)

// Int8As selects how an 8-byte integer column is exposed to the caller,
// per spec.md §6's int8_as key.
type Int8As int

const (
	Int8AsDefault Int8As = iota
	Int8AsBigint
	Int8AsNumeric
	Int8AsVarchar
	Int8AsDouble
	Int8AsInteger
)

// RollbackOnError selects the statement-error recovery policy, spec.md §6.
type RollbackOnError int

const (
	RollbackOnErrorNone      RollbackOnError = 0
	RollbackOnErrorTxn       RollbackOnError = 1
	RollbackOnErrorSavepoint RollbackOnError = 2
)

// UpdatableCursors is the bitmask spec.md §6 describes for updatable_cursors.
type UpdatableCursors int

const (
	CursorsStatic UpdatableCursors = 1 << iota
	CursorsKeysetDriven
	CursorsBulkOps
	CursorsSenseSelfOps
)

// Options is the fully-resolved, zero-value-safe configuration for one
// connection: the concrete product of parsing a DSN through parseOpts plus
// environment variables plus per-DSN attribute defaults (SPEC_FULL.md's
// "Supplemented features" from original_source/options.c). Every key in
// spec.md §6's table has a field here; there is no separate config object
// library, matching SPEC_FULL.md's Ambient Stack decision to keep the
// teacher's hand-rolled values/scanner idiom for this exact problem.
type Options struct {
	DSN string

	Host, Port string
	Database   string
	User       string
	Password   string

	SSLMode         string
	SSLCert         string
	SSLKey          string
	SSLRootCert     string
	ConnectTimeout  int
	ApplicationName string
	KrbSrvName      string

	DisallowPremature     bool
	AllowKeyset           bool
	UpdatableCursors      UpdatableCursors
	LFConversion          bool
	TrueIsMinus1          bool
	Int8As                Int8As
	ByteaAsLongVarbinary  bool
	UseServerSidePrepare  bool
	LowerCaseIdentifier   bool
	RollbackOnError       RollbackOnError
	KeepaliveIdle         int
	KeepaliveInterval     int
	FakeOidIndex          bool
	RowVersioning         bool
	ShowOidColumn         bool
	ShowSystemTables      bool

	RuntimeParams map[string]string
}

// ParseDSN parses a libpq keyword=value connection string (the same shape
// the teacher's connector.go parses) into Options, applying defaults in the
// same precedence order the teacher documents: built-in defaults, then
// PG* environment variables, then the DSN string itself.
//
// Grounded on connector.go's NewConnector/parseOpts/parseEnviron and
// extended with the larger option table spec.md §6 asks for.
func ParseDSN(dsn string) (*Options, error) {
	o := &Options{
		Host:            "localhost",
		Port:            "5432",
		SSLMode:         "prefer",
		KrbSrvName:      "postgres",
		Int8As:          Int8AsDefault,
		RollbackOnError: RollbackOnErrorSavepoint,
		RuntimeParams:   map[string]string{},
	}

	raw := make(values)
	for k, v := range parseEnviron(os.Environ()) {
		raw[k] = v
	}
	if err := parseOpts(dsn, raw); err != nil {
		return nil, newError("ParseDSN", CodeInvalidOption, "%v", err)
	}

	o.DSN = dsn
	applyRawOptions(o, raw)

	if o.User == "" {
		u, err := pgutil.User()
		if err != nil {
			return nil, newError("ParseDSN", CodeInvalidOption, "no user specified and could not determine OS user: %v", err)
		}
		o.User = u
	}
	if o.Password == "" {
		if pf := pgutil.Pgpass(raw["passfile"]); pf != "" {
			// A real .pgpass lookup is intentionally not performed — see
			// DESIGN.md ("Dropped/standard-library" entry on passfile
			// parsing): the path is resolved and then discarded;
			// reading/matching hostname:port:database:user:password
			// lines is not wired.
			_ = pf
		}
	}
	if isUnixSocket(o.Host) {
		o.SSLMode = "disable"
	}

	return o, nil
}

func applyRawOptions(o *Options, raw values) {
	strField := func(key string, dst *string) {
		if v, ok := raw[key]; ok {
			*dst = v
		}
	}
	boolField := func(key string, dst *bool) {
		if v, ok := raw[key]; ok {
			if b, err := pgutil.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	intField := func(key string, dst *int) {
		if v, ok := raw[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	strField("host", &o.Host)
	strField("port", &o.Port)
	strField("dbname", &o.Database)
	strField("user", &o.User)
	strField("password", &o.Password)
	strField("sslmode", &o.SSLMode)
	strField("sslcert", &o.SSLCert)
	strField("sslkey", &o.SSLKey)
	strField("sslrootcert", &o.SSLRootCert)
	strField("application_name", &o.ApplicationName)
	strField("krbsrvname", &o.KrbSrvName)
	intField("connect_timeout", &o.ConnectTimeout)

	boolField("disallow_premature", &o.DisallowPremature)
	boolField("allow_keyset", &o.AllowKeyset)
	boolField("lf_conversion", &o.LFConversion)
	boolField("true_is_minus1", &o.TrueIsMinus1)
	boolField("bytea_as_longvarbinary", &o.ByteaAsLongVarbinary)
	boolField("use_server_side_prepare", &o.UseServerSidePrepare)
	boolField("lower_case_identifier", &o.LowerCaseIdentifier)
	boolField("fake_oid_index", &o.FakeOidIndex)
	boolField("row_versioning", &o.RowVersioning)
	boolField("show_oid_column", &o.ShowOidColumn)
	boolField("show_system_tables", &o.ShowSystemTables)
	intField("keepalive_idle", &o.KeepaliveIdle)
	intField("keepalive_interval", &o.KeepaliveInterval)

	if v, ok := raw["updatable_cursors"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.UpdatableCursors = UpdatableCursors(n)
		}
	}
	if v, ok := raw["int8_as"]; ok {
		switch strings.ToUpper(v) {
		case "BIGINT":
			o.Int8As = Int8AsBigint
		case "NUMERIC":
			o.Int8As = Int8AsNumeric
		case "VARCHAR":
			o.Int8As = Int8AsVarchar
		case "DOUBLE":
			o.Int8As = Int8AsDouble
		case "INTEGER":
			o.Int8As = Int8AsInteger
		default:
			o.Int8As = Int8AsDefault
		}
	}
	if v, ok := raw["rollback_on_error"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.RollbackOnError = RollbackOnError(n)
		}
	}
}

func isUnixSocket(host string) bool {
	return filepath.IsAbs(host) || strings.HasPrefix(host, "@")
}

// wireConfig translates Options into the subset internal/wire.Dial needs,
// building the *tls.Config the way the teacher's ssl.go does (certificate
// loading, root CA, sslmode-driven verification level) but without the
// teacher's CRL support — no CRL source is wired anywhere else in this
// module's domain stack, so DESIGN.md records that as dropped rather than
// carried half-adapted.
func (o *Options) wireConfig() (wire.Config, error) {
	cfg := wire.Config{
		Host:            o.Host,
		Port:            o.Port,
		Database:        o.Database,
		User:            o.User,
		Password:        o.Password,
		SSLMode:         o.SSLMode,
		ApplicationName: o.ApplicationName,
		ConnectTimeout:  o.ConnectTimeout,
		KrbSrvName:      o.KrbSrvName,
		RuntimeParams:   map[string]string{"client_encoding": "UTF8", "datestyle": "ISO, MDY"},
	}
	for k, v := range o.RuntimeParams {
		cfg.RuntimeParams[k] = v
	}

	if o.SSLMode == "disable" || o.SSLMode == "" {
		return cfg, nil
	}

	tlsConf := &tls.Config{}
	switch o.SSLMode {
	case "require":
		tlsConf.InsecureSkipVerify = true
	case "verify-ca":
		// Check the chain against RootCAs, but not the host name.
		tlsConf.InsecureSkipVerify = true
		tlsConf.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("pgodbc: server presented no certificate")
			}
			opts := x509.VerifyOptions{Roots: tlsConf.RootCAs, Intermediates: x509.NewCertPool()}
			for _, c := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(c)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
	case "verify-full":
		tlsConf.ServerName = o.Host
	case "allow", "prefer":
		tlsConf.InsecureSkipVerify = true
	default:
		return wire.Config{}, newError("wireConfig", CodeInvalidOption, "unsupported sslmode %q", o.SSLMode)
	}

	if o.SSLCert != "" && o.SSLKey != "" {
		if err := pgutil.SSLKeyPermissions(o.SSLKey); err != nil {
			return wire.Config{}, newError("wireConfig", CodeInvalidOption, "%v", err)
		}
		cert, err := tls.LoadX509KeyPair(o.SSLCert, o.SSLKey)
		if err != nil {
			return wire.Config{}, newError("wireConfig", CodeInvalidOption, "loading client certificate: %v", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	if o.SSLRootCert != "" {
		pem, err := os.ReadFile(o.SSLRootCert)
		if err != nil {
			return wire.Config{}, newError("wireConfig", CodeInvalidOption, "reading sslrootcert: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return wire.Config{}, newError("wireConfig", CodeInvalidOption, "could not parse PEM in sslrootcert")
		}
		tlsConf.RootCAs = pool
	}
	tlsConf.Renegotiation = tls.RenegotiateFreelyAsClient
	cfg.TLSConfig = tlsConf
	return cfg, nil
}

// --- libpq-style keyword=value scanner, grounded on connector.go verbatim ---

type values map[string]string

type scanner struct {
	s []rune
	i int
}

func newScanner(s string) *scanner { return &scanner{[]rune(s), 0} }

func (s *scanner) Next() (rune, bool) {
	if s.i >= len(s.s) {
		return 0, false
	}
	r := s.s[s.i]
	s.i++
	return r, true
}

func (s *scanner) SkipSpaces() (rune, bool) {
	r, ok := s.Next()
	for unicode.IsSpace(r) && ok {
		r, ok = s.Next()
	}
	return r, ok
}

// parseOpts parses a libpq keyword=value string, grounded on connector.go's
// parseOpts (itself modeled on libpq's conninfo_parse in fe-connect.c).
func parseOpts(name string, o values) error {
	s := newScanner(name)

	for {
		var (
			keyRunes, valRunes []rune
			r                  rune
			ok                 bool
		)

		if r, ok = s.SkipSpaces(); !ok {
			break
		}

		for !unicode.IsSpace(r) && r != '=' {
			keyRunes = append(keyRunes, r)
			if r, ok = s.Next(); !ok {
				break
			}
		}

		if r != '=' {
			r, ok = s.SkipSpaces()
		}

		if r != '=' || !ok {
			return fmt.Errorf("missing %q after %q in connection info string", "=", string(keyRunes))
		}

		if r, ok = s.SkipSpaces(); !ok {
			o[string(keyRunes)] = ""
			break
		}

		if r != '\'' {
			for !unicode.IsSpace(r) {
				if r == '\\' {
					if r, ok = s.Next(); !ok {
						return fmt.Errorf("missing character after backslash")
					}
				}
				valRunes = append(valRunes, r)
				if r, ok = s.Next(); !ok {
					break
				}
			}
		} else {
		quote:
			for {
				if r, ok = s.Next(); !ok {
					return fmt.Errorf("unterminated quoted string literal in connection string")
				}
				switch r {
				case '\'':
					break quote
				case '\\':
					r, _ = s.Next()
					fallthrough
				default:
					valRunes = append(valRunes, r)
				}
			}
		}

		o[string(keyRunes)] = string(valRunes)
	}

	return nil
}

// parseEnviron mirrors libpq's PG* environment variable handling, grounded
// on connector.go's parseEnviron (Kerberos/GSS-only keys kept since this
// module keeps the teacher's GSS auth path).
func parseEnviron(env []string) map[string]string {
	out := make(map[string]string)

	for _, v := range env {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			continue
		}
		accrue := func(keyname string) { out[keyname] = parts[1] }

		switch parts[0] {
		case "PGHOST":
			accrue("host")
		case "PGPORT":
			accrue("port")
		case "PGDATABASE":
			accrue("dbname")
		case "PGUSER":
			accrue("user")
		case "PGPASSWORD":
			accrue("password")
		case "PGPASSFILE":
			accrue("passfile")
		case "PGOPTIONS":
			accrue("options")
		case "PGAPPNAME":
			accrue("application_name")
		case "PGSSLMODE":
			accrue("sslmode")
		case "PGSSLCERT":
			accrue("sslcert")
		case "PGSSLKEY":
			accrue("sslkey")
		case "PGSSLROOTCERT":
			accrue("sslrootcert")
		case "PGCONNECT_TIMEOUT":
			accrue("connect_timeout")
		case "PGCLIENTENCODING":
			accrue("client_encoding")
		case "PGGSSLIB":
			accrue("gsslib")
		case "PGKRBSRVNAME":
			accrue("krbsrvname")
		}
	}

	return out
}

func network(o *Options) (netw, addr string) {
	if isUnixSocket(o.Host) {
		return "unix", filepath.Join(o.Host, ".s.PGSQL."+o.Port)
	}
	return "tcp", net.JoinHostPort(o.Host, o.Port)
}
