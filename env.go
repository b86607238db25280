package pgodbc

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/psqlodbc-go/pgodbc/internal/envlog"
)

// PoolMode is the Go-native sliver of psqlodbc's setup.c/environ.c pooling
// flags: no registry/INI UI (Non-goals), just the two modes that matter to
// the core — per SPEC_FULL.md's Environment section.
type PoolMode int

const (
	PoolOff PoolMode = iota
	PoolPerDSN
)

// Environment is the process-wide root spec.md §3 calls for: connection
// registry, pooling mode, ODBC-version declaration, guarded by a single
// lock. One Environment is normally a process-wide singleton (DefaultEnv),
// but tests construct private ones.
type Environment struct {
	mu   sync.Mutex
	conn map[string]*Connection

	PoolMode    PoolMode
	odbcVersion string

	pool map[string][]*Connection // keyed by DSN, only used when PoolMode == PoolPerDSN
}

// DefaultEnv is the process-wide environment a bare Connect uses.
var DefaultEnv = NewEnvironment()

// NewEnvironment allocates an independent Environment (the "HENV" of
// spec.md §9's tagged-variant design note).
func NewEnvironment() *Environment {
	return &Environment{
		conn: make(map[string]*Connection),
		pool: make(map[string][]*Connection),
	}
}

// SetODBCVersion records the ODBC version the caller declared via
// SQLSetEnvAttr(SQL_ATTR_ODBC_VERSION, ...); stored, not interpreted here —
// the thin public entry-point layer (handle.go) is what acts on it.
func (e *Environment) SetODBCVersion(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.odbcVersion = v
}

// Connect opens a new Connection under this Environment, or hands back a
// pooled one when PoolMode == PoolPerDSN and a idle connection for this DSN
// exists.
func (e *Environment) Connect(ctx context.Context, opts *Options) (*Connection, error) {
	e.mu.Lock()
	if e.PoolMode == PoolPerDSN {
		if pooled := e.pool[opts.DSN]; len(pooled) > 0 {
			c := pooled[len(pooled)-1]
			e.pool[opts.DSN] = pooled[:len(pooled)-1]
			e.mu.Unlock()
			return c, nil
		}
	}
	e.mu.Unlock()

	c, err := connect(ctx, opts)
	if err != nil {
		envlog.ConnectFailed(opts.Host, opts.Database, opts.User, err)
		return nil, err
	}
	c.env = e

	e.mu.Lock()
	e.conn[c.id] = c
	e.mu.Unlock()

	envlog.Connect(c.id, opts.Host, opts.Database, opts.User)
	return c, nil
}

// release returns c to the idle pool (PoolPerDSN) or closes it outright
// (PoolOff), called from Connection.Close.
func (e *Environment) release(c *Connection) error {
	e.mu.Lock()
	delete(e.conn, c.id)
	if e.PoolMode == PoolPerDSN && c.phase != phaseConnDown {
		e.pool[c.opts.DSN] = append(e.pool[c.opts.DSN], c)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	envlog.Disconnect(c.id)
	return c.closeSession()
}

// newConnID generates a collision-proof correlation ID for a connection's
// log lines, replacing the teacher's pointer-hex scheme (this module has
// no equivalent of a stable *conn pointer to print, since Connection
// outlives any one TCP socket across pooled reuse).
func newConnID() string {
	return uuid.NewString()
}
