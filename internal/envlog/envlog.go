// Package envlog provides the process-wide structured logging the
// environment/connection-pool layer uses. The wire-protocol teacher this
// module is built from carries no logging dependency at all (it reports
// everything through returned *Error values instead), so this package has
// no teacher file to adapt — it is grounded on how
// apecloud/myduckserver wires up logrus for its own replication/catalog
// event logging, borrowed here for the one ambient concern the teacher's
// domain (a single connection) has no equivalent of: a process-wide
// environment tracking many connections and a pool.
package envlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the process-wide logger, e.g. to redirect to a JSON
// sink or raise the level; safe for concurrent use.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func current() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

// Connect logs a successful connection establishment.
func Connect(connID, host, database, user string) {
	current().WithFields(logrus.Fields{
		"conn":     connID,
		"host":     host,
		"database": database,
		"user":     user,
	}).Info("pgodbc: connection established")
}

// ConnectFailed logs a failed connection attempt.
func ConnectFailed(host, database, user string, err error) {
	current().WithFields(logrus.Fields{
		"host":     host,
		"database": database,
		"user":     user,
		"error":    err,
	}).Warn("pgodbc: connection failed")
}

// Disconnect logs connection teardown.
func Disconnect(connID string) {
	current().WithField("conn", connID).Info("pgodbc: connection closed")
}

// PoolEvict logs a pooled connection being evicted (capacity or idle
// timeout), the Go-native sliver of psqlodbc's setup.c/environ.c pooling
// flags described in SPEC_FULL.md's Environment section.
func PoolEvict(connID, reason string) {
	current().WithFields(logrus.Fields{
		"conn":   connID,
		"reason": reason,
	}).Debug("pgodbc: pooled connection evicted")
}

// SavepointRollback logs a per-query savepoint rollback (spec.md §4.1's
// ROLLBACK_ON_ERROR path), useful when diagnosing why a transaction's
// phase flipped back to in-transaction-ok after a statement error.
func SavepointRollback(connID string, partial bool) {
	current().WithFields(logrus.Fields{
		"conn":    connID,
		"partial": partial,
	}).Debug("pgodbc: rolled back to per-query savepoint")
}
