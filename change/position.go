package change

import (
	"fmt"

	"github.com/google/uuid"
)

// Gtid names a committed transaction in the MySQL cluster: the
// originating server's UUID plus a sequence number scoped to that UUID.
type Gtid struct {
	SID [16]byte
	Seq int64
}

// String renders the canonical "source-uuid:seq" GTID text form used
// by SHOW MASTER STATUS and mysqlbinlog.
func (g Gtid) String() string {
	return fmt.Sprintf("%s:%d", uuid.UUID(g.SID).String(), g.Seq)
}

// Position is an immutable replication position: monotonic within a
// single server identity. File rotation resets Offset but preserves
// file ordering.
type Position struct {
	File     string
	Offset   uint64
	ServerID uint32
	Gtid     *Gtid // nil when GTID is unavailable for this event
}

func (p Position) String() string {
	if p.Gtid != nil {
		return fmt.Sprintf("%s:%d@%d(%s)", p.File, p.Offset, p.ServerID, p.Gtid)
	}
	return fmt.Sprintf("%s:%d@%d", p.File, p.Offset, p.ServerID)
}

// Less reports whether p occurred strictly before o, assuming both
// positions are within the same binlog file (callers must not compare
// across a RotateEvent).
func (p Position) Less(o Position) bool {
	return p.Offset < o.Offset
}
