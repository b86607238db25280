package pgodbc

import (
	"context"
	"strconv"
	"strings"

	"github.com/psqlodbc-go/pgodbc/internal/envlog"
	"github.com/psqlodbc-go/pgodbc/internal/wire"
	"github.com/psqlodbc-go/pgodbc/oid"
)

// SendFlags mirrors spec.md §4.1's send_query flags.
type SendFlags int

const (
	FlagGoIntoTransaction SendFlags = 1 << iota
	FlagRollbackOnError
	FlagIgnoreRoundTrip
)

// QueryInfo carries the optional caller-supplied result object to reuse
// (the cache-refill fetch path, spec.md §4.1 step 4) plus any bound
// parameters for an extended-query dispatch.
type QueryInfo struct {
	ResultIn *Result
	Params   []wire.Param
}

const perQuerySavepoint = "_per_query_svp_"

// exec is the simple no-params, no-owning-statement entry point used for
// BEGIN/COMMIT/ROLLBACK and other connection-internal commands.
func (c *Connection) exec(ctx context.Context, sql string) (*Result, error) {
	return c.sendQuery(ctx, sql, QueryInfo{}, 0, nil)
}

// sendQuery is spec.md §4.1's central entry point and one of the public
// entry points spec.md §5 requires to hold the connection-wide mutex for
// its whole duration ("Scoped acquisition of the per-connection mutex is
// enforced on all public entry points with guaranteed release on all exit
// paths"): the underlying net.Conn (internal/wire/session.go's send/
// recvMsg) has no synchronization of its own, so two goroutines dispatching
// on the same *Connection at once would otherwise interleave writes/reads
// on the same socket and corrupt the protocol stream.
func (c *Connection) sendQuery(ctx context.Context, sql string, qi QueryInfo, flags SendFlags, owner *Statement) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendQueryLocked(ctx, sql, qi, flags, owner)
}

// sendQueryLocked is sendQuery's body, run with c.mu already held for the
// entire call. Split out so the per-query-savepoint rollback below and
// reconcilePhase can be invoked without re-entering the (non-reentrant)
// mutex sendQuery already holds.
func (c *Connection) sendQueryLocked(ctx context.Context, sql string, qi QueryInfo, flags SendFlags, owner *Statement) (*Result, error) {
	c.executing = true
	defer func() { c.executing = false }()

	// Step 1: build the prologue.
	needBegin := flags&FlagGoIntoTransaction != 0 && c.phase == phaseNotInTrans
	useSavepoint := flags&FlagRollbackOnError != 0 && c.serverVersion[0] >= 8

	var prologue strings.Builder
	discardCount := 0
	if needBegin {
		prologue.WriteString("BEGIN;")
		discardCount++
	}
	if useSavepoint {
		prologue.WriteString("SAVEPOINT " + perQuerySavepoint + ";")
		discardCount++
	}

	batch := sql
	if prologue.Len() > 0 {
		if flags&FlagIgnoreRoundTrip != 0 {
			if _, err := c.dispatchAndDrain(ctx, prologue.String(), nil, discardCount, owner); err != nil {
				return nil, err
			}
			discardCount = 0
		} else {
			batch = prologue.String() + sql
		}
	}
	if useSavepoint {
		batch = batch + ";RELEASE " + perQuerySavepoint
	}

	head, err := c.dispatchAndDrain(ctx, batch, &qi, discardCount, owner)

	// Step 6: reconcile transaction phase.
	c.reconcilePhaseLocked(c.sess.TransactionStatus())

	if err != nil && useSavepoint {
		inError := c.phase == phaseInErrorTrans
		if inError {
			envlog.SavepointRollback(c.id, false)
			c.sendQueryLocked(ctx, "ROLLBACK TO "+perQuerySavepoint+";RELEASE "+perQuerySavepoint, QueryInfo{}, 0, owner)
		}
	}

	return head, err
}

// dispatchAndDrain sends one multi-statement batch via the extended query
// protocol (when qi carries bound Params) or the simple query protocol, and
// drains the resulting event stream, building the Result chain. discard
// counts how many leading command-complete results are the injected
// BEGIN/SAVEPOINT prologue and should be swallowed rather than returned to
// the caller, per spec.md §4.1 step 3. Always called with c.mu already
// held by sendQueryLocked.
func (c *Connection) dispatchAndDrain(ctx context.Context, sql string, qi *QueryInfo, discard int, owner *Statement) (*Result, error) {
	var stream *wire.Stream
	if qi != nil && len(qi.Params) > 0 {
		stream = c.sess.ExtendedQuery(sql, qi.Params, false)
	} else {
		stream = c.sess.SimpleQuery(sql)
	}

	var head, tail *Result
	var cur *Result
	var firstErr *Error

	appendResult := func(r *Result) {
		if head == nil {
			head = r
		} else {
			tail.next = r
		}
		tail = r
	}

	reuseNext := qi != nil && qi.ResultIn != nil

	for {
		ev, err := stream.Next()
		if err != nil {
			c.phase = phaseConnDown
			return head, newError("sendQuery", CodeConnectionCommunicationError, "%v", err)
		}

		switch ev.Kind {
		case wire.EventRowDescription:
			if cur == nil {
				if reuseNext && qi.ResultIn != nil {
					cur = qi.ResultIn
					qi.ResultIn = nil
				} else {
					cur = newResult(c)
				}
				if discard == 0 {
					appendResult(cur)
				}
			}
			cur.Columns = decodeColumns(ev.RowDesc)
			cur.Status = ResTuplesOK

		case wire.EventDataRow:
			if cur == nil {
				cur = newResult(c)
				if discard == 0 {
					appendResult(cur)
				}
			}
			cur.rows = append(cur.rows, decodeRow(ev.Row))
			cur.numTotalRead++

		case wire.EventCommandComplete:
			if cur == nil {
				cur = newResult(c)
				if discard == 0 {
					appendResult(cur)
				}
			}
			cur.commandTag = ev.CommandTag
			cur.rowsAffected = trailingRowCount(ev.CommandTag)
			if cur.Status == ResEmpty {
				cur.Status = ResCommandOK
			}
			c.applyCommandSideEffects(ev.CommandTag)
			if discard > 0 {
				discard--
			}
			cur = nil

		case wire.EventEmptyQuery:
			if discard > 0 {
				discard--
			}
			cur = nil

		case wire.EventNotice:
			w := noticeAsWarning("sendQuery", ev.Notice)
			if cur != nil && w.SQLSTATE != "" && w.SQLSTATE != "00000" {
				cur.Status = ResNonFatalError
				if cur.firstErr == nil {
					cur.firstErr = w
				}
			}
			if owner != nil {
				owner.conn.diag.push(w)
			}

		case wire.EventError:
			e := errorFromWire("sendQuery", ev.Err)
			if firstErr == nil {
				firstErr = e
			}
			if cur == nil {
				cur = newResult(c)
				if discard == 0 {
					appendResult(cur)
				}
			}
			cur.Status = ResFatalError
			cur.firstErr = e
			cur = nil
			if owner != nil {
				owner.conn.diag.push(e)
			} else {
				c.diag.push(e)
			}

		case wire.EventReady:
			if head != nil {
				tail.eof = true
			}
			if firstErr != nil {
				return head, firstErr
			}
			return head, nil
		}
	}
}

// applyCommandSideEffects implements spec.md §4.1 step 3's per-tag
// bookkeeping (transition phase on BEGIN, invalidate caches on DDL/SET
// search_path). The phase transition itself is authoritative only via
// reconcilePhase (the library's reported status); this only handles cache
// eviction that command tags alone can trigger.
func (c *Connection) applyCommandSideEffects(tag string) {
	upper := strings.ToUpper(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(upper, "DROP TABLE"), strings.HasPrefix(upper, "ALTER TABLE"):
		c.catalog.evictAll()
	case strings.HasPrefix(upper, "SET"):
		// A SET that touches search_path invalidates the current-schema
		// cache; textual matching is sufficient since the driver itself
		// generated or forwarded this statement.
		if strings.Contains(strings.ToLower(tag), "search_path") {
			c.catalog.evictAll()
		}
	}
}

// trailingRowCount extracts the trailing integer of a command tag
// ("INSERT 0 2" -> 2, "SELECT" -> 0, "UPDATE 3" -> 3).
func trailingRowCount(tag string) int64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func decodeColumns(fds []wire.FieldDescription) []ColumnInfo {
	cols := make([]ColumnInfo, len(fds))
	for i, fd := range fds {
		typmod := fd.TypeMod
		if !isTemporalType(fd.Type) {
			typmod -= 4 // strip the protocol's 4-byte header, per spec.md §4.1 step 4
		}
		cols[i] = ColumnInfo{
			Name:    fd.Name,
			Type:    fd.Type,
			TypeMod: typmod,
			Relid:   fd.TableOID,
			Attnum:  fd.Column,
		}
	}
	return cols
}

func isTemporalType(t oid.Oid) bool {
	switch t {
	case oid.T_date, oid.T_time, oid.T_timestamp, oid.T_timestamptz, oid.T_timetz, oid.T_interval:
		return true
	}
	return false
}

func decodeRow(vals []wire.Value) []Field {
	row := make([]Field, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		b := make([]byte, len(v))
		copy(b, v)
		row[i] = Field{Bytes: b}
	}
	return row
}
