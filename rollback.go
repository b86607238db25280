package pgodbc

// rollbackOp tags what kind of positioned operation a rollbackEntry undoes.
type rollbackOp int

const (
	rollbackUpdate rollbackOp = iota
	rollbackDelete
	rollbackInsert
)

// rollbackEntry is spec.md §4.2's Rollback{index, option, old_block,
// old_offset} record: enough to restore a keyset entry's prior identity
// (and, for an update, its prior row bytes) if the enclosing transaction
// aborts after a positioned operation already adjusted the local overlay.
//
// rollbackUpdate/rollbackDelete key off absIndex, the row's absolute
// server position (r.base+rowIdx at record time) — the same key space
// r.updated/r.deleted use, so replay can clear those overlays without a
// relative/absolute mismatch. rollbackInsert instead keys off
// logicalIndex, the overlayRow identity PositionedInsert hands out before
// the row has been spliced into r.keys by spliceAddedOverlay; a row
// position recorded at insert time would already be stale by the time
// replay runs, since splicing only happens on the next Fetch.
type rollbackEntry struct {
	index        int // relative row index into r.keys/r.rows, rollbackUpdate/rollbackDelete only
	absIndex     int // r.base+index at record time, rollbackUpdate/rollbackDelete only
	logicalIndex int // overlayRow.logicalIndex, rollbackInsert only
	op           rollbackOp
	oldBlock     int32
	oldOffset    int16
	oldRow       []Field // only populated for rollbackUpdate
}

// rollbackLog is the per-Result undo journal. It exists because a
// positioned UPDATE/DELETE updates the local keyset/tuple cache
// optimistically, before the server's COMMIT is known to succeed; replay
// restores the pre-operation view, per spec.md §4.2's "rollback-on-error"
// cursor invariant. The connection's ROLLBACK path (Connection.abort) does
// not call replay, and COMMIT does not clear the log. No teacher file
// covers this (lib-pq has no client-side row cache to unwind); grounded
// directly on spec.md §3/§4.2's record shape.
type rollbackLog struct {
	entries []rollbackEntry
}

func newRollbackLog() *rollbackLog {
	return &rollbackLog{}
}

func (rl *rollbackLog) record(e rollbackEntry) {
	rl.entries = append(rl.entries, e)
}

func (rl *rollbackLog) clear() {
	rl.entries = rl.entries[:0]
}

// replay undoes the log in reverse order against r's keyset/tuple cache.
// rollbackUpdate/rollbackDelete require a live keyset row at e.index and
// stop (a "partial rollback") the first time one is missing — e.g. the
// result was re-fetched from the server in between, and replaying against
// a row the log no longer describes would corrupt rather than restore
// state. rollbackInsert carries no such dependency: an added row is
// locatable purely by its logicalIndex whether or not it has been
// spliced into the keyset yet, so it is never blocked by that guard.
func (rl *rollbackLog) replay(r *Result) {
	stopped := false
	for i := len(rl.entries) - 1; i >= 0; i-- {
		e := rl.entries[i]

		if e.op == rollbackInsert {
			removeAddedByLogicalIndex(r, e.logicalIndex)
			continue
		}

		if stopped || r.keys == nil {
			stopped = true
			continue
		}
		if _, ok := r.keys.at(e.index); !ok {
			stopped = true
			continue
		}
		switch e.op {
		case rollbackUpdate:
			r.keys.entries[e.index].block = e.oldBlock
			r.keys.entries[e.index].offset = e.oldOffset
			r.keys.setStatus(e.index, rowOK)
			if e.oldRow != nil && e.index < len(r.rows) {
				r.rows[e.index] = e.oldRow
			}
			if r.updated != nil {
				delete(r.updated, e.absIndex)
			}
		case rollbackDelete:
			r.keys.setStatus(e.index, rowOK)
			delete(r.deleted, e.absIndex)
		}
	}
	rl.clear()
}

// removeAddedByLogicalIndex undoes a positioned insert identified by its
// overlayRow.logicalIndex, whether or not that row has since been spliced
// out of r.added and into r.keys/r.rows by spliceAddedOverlay (cursor.go).
func removeAddedByLogicalIndex(r *Result, logicalIndex int) {
	for i, ov := range r.added {
		if ov.logicalIndex == logicalIndex {
			r.added = append(r.added[:i], r.added[i+1:]...)
			return
		}
	}
	if r.keys == nil {
		return
	}
	for i, e := range r.keys.entries {
		if e.addedLogicalIndex == logicalIndex && logicalIndex != 0 {
			r.keys.entries = append(r.keys.entries[:i], r.keys.entries[i+1:]...)
			if i < len(r.rows) {
				r.rows = append(r.rows[:i], r.rows[i+1:]...)
			}
			return
		}
	}
}
