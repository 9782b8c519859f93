package mysqlcdc

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/neverchanje/chgcap-mysql/cdcerrors"
)

// SSLMode selects replication transport security. Only Disabled is
// implemented (spec §6); the field exists so configuration shaped
// like the upstream connector's still round-trips.
type SSLMode int

const (
	SSLDisabled SSLMode = iota
)

// FailureHandlingMode governs what happens to a record that fails to
// decode or resolve, reused verbatim from the original connector's
// documented policy (spec §7, §9 supplemented features):
//   - Skip: the problematic change event will be skipped.
//   - Warn: log the problematic change event and the exception, and
//     then skip it.
//   - Fail: terminate the connector and report the exception.
//   - Ignore: ignore the problematic change event and continue
//     processing without logging it.
type FailureHandlingMode int

const (
	FailureHandlingFail FailureHandlingMode = iota
	FailureHandlingSkip
	FailureHandlingWarn
	FailureHandlingIgnore
)

func (m FailureHandlingMode) String() string {
	switch m {
	case FailureHandlingFail:
		return "fail"
	case FailureHandlingSkip:
		return "skip"
	case FailureHandlingWarn:
		return "warn"
	case FailureHandlingIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("FailureHandlingMode(%d)", int(m))
	}
}

// Config holds every recognised option from spec §6.
type Config struct {
	Hostname string
	Port     int
	Username string
	Password string
	Database string

	// ServerID is the replica identity registered with the master;
	// must be unique cluster-wide. Zero means "pick a random id in
	// [5400, 6400)", matching the upstream connector's default.
	ServerID uint32

	ServerTimezone *time.Location

	ConnectTimeout     time.Duration
	ConnectionPoolSize int
	HeartbeatInterval  time.Duration
	SSLMode            SSLMode

	IncludeSchemaChanges bool

	// DatabaseList and TableList are regex filters; empty means match
	// everything (spec §6).
	DatabaseList []string
	TableList    []string

	// SplitSize and SplitMetaGroupSize size the (external) snapshot
	// reader; carried here only so a single Config value configures
	// the whole connector, per spec §9's snapshot-phase interface.
	SplitSize            int
	SplitMetaGroupSize   int
	ScanNewlyAddedTables bool

	FailureHandlingMode FailureHandlingMode

	// TxnBufferCapacity bounds the transaction look-ahead buffer
	// (spec §4.G). Zero selects a sensible default.
	TxnBufferCapacity int
}

// Validate checks mandatory fields and internal consistency, returning
// a *cdcerrors.Error of kind ConfigInvalid on failure.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return cdcerrors.New(cdcerrors.ConfigInvalid, "hostname is required")
	}
	if c.Username == "" {
		return cdcerrors.New(cdcerrors.ConfigInvalid, "username is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return cdcerrors.New(cdcerrors.ConfigInvalid, "port %d out of range", c.Port)
	}
	if c.SSLMode != SSLDisabled {
		return cdcerrors.New(cdcerrors.ConfigInvalid, "unsupported ssl_mode %d", c.SSLMode)
	}
	return nil
}

// withDefaults returns a copy of c with zero-valued optional fields
// replaced by their defaults.
func (c Config) withDefaults() Config {
	if c.ServerID == 0 {
		c.ServerID = uint32(5400 + rand.Intn(1000))
	}
	if c.ServerTimezone == nil {
		c.ServerTimezone = time.UTC
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.ConnectionPoolSize == 0 {
		c.ConnectionPoolSize = 1
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.TxnBufferCapacity == 0 {
		c.TxnBufferCapacity = 2048
	}
	return c
}

// Addr returns the "host:port" dial address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
