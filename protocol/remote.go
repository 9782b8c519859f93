package binlog

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/DataDog/zstd"
)

// ErrMalformedPacket is returned when a packet does not conform to
// the expected wire format.
var ErrMalformedPacket = errors.New("binlog: malformed packet")

// null represents an SQL NULL value within a text resultSet row.
type null struct{}

// Remote is a connection to a MySQL server speaking the replication
// protocol: authenticate once, then repeatedly call Seek and NextEvent
// to stream the binary log.
type Remote struct {
	conn net.Conn
	seq  uint8
	hs   handshake

	requestFile     string
	requestPos      uint32
	binlogReader    *reader
	pendingChecksum int // checksum trailer size (0 or 4) discovered by Seek
}

// Dial connects to the MySQL server at address (e.g. "host:3306") and
// performs the initial connection-phase handshake.
func Dial(network, address string) (*Remote, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	var seq uint8
	r := newReader(conn, &seq)
	hs := handshake{}
	if err := hs.decode(r); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Remote{conn: conn, seq: seq, hs: hs}, nil
}

// IsSSLSupported tells whether the server advertises SSL support.
func (bl *Remote) IsSSLSupported() bool {
	return bl.hs.capabilityFlags&CLIENT_SSL != 0
}

// UpgradeSSL upgrades the connection to TLS. Must be called before
// Authenticate. If rootCAs is nil, certificate verification is skipped.
func (bl *Remote) UpgradeSSL(rootCAs *x509.CertPool) error {
	err := bl.write(sslRequest{
		capabilityFlags: CLIENT_LONG_PASSWORD | CLIENT_SECURE_CONNECTION,
		maxPacketSize:   maxPacketSize,
		characterSet:    bl.hs.characterSet,
	})
	if err != nil {
		return err
	}
	tlsConf := &tls.Config{}
	if rootCAs != nil {
		tlsConf.RootCAs = rootCAs
	} else {
		tlsConf.InsecureSkipVerify = true
	}
	bl.conn = tls.Client(bl.conn, tlsConf)
	return nil
}

// Authenticate sends the given credentials to the server.
//
// Only mysql_native_password style challenge-response is implemented;
// caching_sha2_password is accepted only along its fast-auth path
// (the common case once the server has cached the client's SHA-256
// hash from a prior connection). Full RSA-based caching_sha2_password
// key exchange is not implemented: wire-level protocol completeness
// is out of scope here, the decoder side is the point.
func (bl *Remote) Authenticate(username, password string) error {
	var plugin string
	switch bl.hs.authPluginName {
	case "mysql_native_password", "caching_sha2_password":
		plugin = bl.hs.authPluginName
	case "":
		plugin = "mysql_native_password"
	default:
		return fmt.Errorf("binlog: unsupported auth plugin %q", bl.hs.authPluginName)
	}

	authResponse := encryptedPasswd([]byte(password), bl.hs.authPluginData)
	err := bl.write(handshakeResponse41{
		capabilityFlags: CLIENT_LONG_PASSWORD | CLIENT_SECURE_CONNECTION,
		maxPacketSize:   maxPacketSize,
		characterSet:    bl.hs.characterSet,
		username:        username,
		authResponse:    authResponse,
		authPluginName:  plugin,
	})
	if err != nil {
		return err
	}

	r := newReader(bl.conn, &bl.seq)
	marker, err := r.peek()
	if err != nil {
		return err
	}
	switch marker {
	case okMarker:
		ok := okPacket{}
		if err := ok.decode(r, bl.hs.capabilityFlags); err != nil {
			return err
		}
	case errMarker:
		ep := errPacket{}
		if err := ep.decode(r, bl.hs.capabilityFlags); err != nil {
			return err
		}
		return errors.New(ep.errorMessage)
	case 0x01: // AuthMoreData: caching_sha2_password fast-auth result
		r.int1()
		status := r.int1()
		if r.err != nil {
			return r.err
		}
		if status != 3 { // 3 == fast auth success
			return fmt.Errorf("binlog: caching_sha2_password full authentication is not supported")
		}
		if err := r.drain(); err != nil {
			return err
		}
		r2 := newReader(bl.conn, &bl.seq)
		b, err := r2.peek()
		if err != nil {
			return err
		}
		if b == errMarker {
			ep := errPacket{}
			if err := ep.decode(r2, bl.hs.capabilityFlags); err != nil {
				return err
			}
			return errors.New(ep.errorMessage)
		}
	default:
		return ErrMalformedPacket
	}

	rows, err := bl.queryRows(`select version()`)
	if err == nil && len(rows) > 0 {
		if v, ok := rows[0][0].(string); ok {
			bl.hs.serverVersion = v
		}
	}
	return nil
}

// ListFiles lists the binary log files kept by the server, equivalent
// to SHOW BINARY LOGS.
func (bl *Remote) ListFiles() ([]string, error) {
	rows, err := bl.queryRows(`show binary logs`)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(rows))
	for i := range files {
		files[i] = rows[i][0].(string)
	}
	return files, nil
}

// MasterStatus reports the current binlog file and position, equivalent
// to SHOW MASTER STATUS.
func (bl *Remote) MasterStatus() (file string, pos uint32, err error) {
	rows, err := bl.queryRows(`show master status`)
	if err != nil {
		return "", 0, err
	}
	if len(rows) == 0 {
		return "", 0, nil
	}
	off, err := strconv.Atoi(rows[0][1].(string))
	return rows[0][0].(string), uint32(off), err
}

// SetHeartbeatPeriod configures how often the server emits HeartbeatEvent
// in the absence of other activity. Zero disables heartbeats.
func (bl *Remote) SetHeartbeatPeriod(d time.Duration) error {
	_, err := bl.query(fmt.Sprintf("SET @master_heartbeat_period=%d", d.Nanoseconds()))
	return err
}

func (bl *Remote) fetchBinlogChecksum() (string, error) {
	rows, err := bl.queryRows(`show global variables like 'binlog_checksum'`)
	if err != nil {
		return "", err
	}
	if len(rows) > 0 {
		if v, ok := rows[0][1].(string); ok {
			return v, nil
		}
	}
	return "", nil
}

func (bl *Remote) confirmChecksumSupport() error {
	_, err := bl.query(`set @master_binlog_checksum = @@global.binlog_checksum`)
	return err
}

// Seek requests the binlog stream starting at fileName/position. If
// serverID is zero, NextEvent returns io.EOF once the server has no
// more events buffered; if non-zero, NextEvent blocks for new events
// (the server treats this as a real replica registration).
func (bl *Remote) Seek(serverID uint32, fileName string, position uint32) error {
	checksum, err := bl.fetchBinlogChecksum()
	if err != nil {
		return err
	}
	var checksumBytes int
	if checksum != "" && checksum != "NONE" {
		if err := bl.confirmChecksumSupport(); err != nil {
			return err
		}
		checksumBytes = 4
	}
	bl.seq = 0
	if err := bl.write(comBinlogDump{
		binlogPos:      position,
		serverID:       serverID,
		binlogFilename: fileName,
	}); err != nil {
		return err
	}
	bl.requestFile, bl.requestPos = fileName, position
	bl.binlogReader = nil
	bl.pendingChecksum = checksumBytes
	return nil
}

func (bl *Remote) binlogVersion() (uint16, error) {
	sv, err := newServerVersion(bl.hs.serverVersion)
	if err != nil {
		return 4, nil //nolint:nilerr // unparsable version strings (e.g. forks) default to the modern wire format
	}
	return sv.binlogVersion(), nil
}

// NextEvent returns the next binlog Event. Returns io.EOF once the
// server closes the stream (only possible when Seek was called with
// serverID zero).
func (bl *Remote) NextEvent() (Event, error) {
	r := bl.binlogReader
	if r == nil {
		r = newReader(bl.conn, &bl.seq)
		v, err := bl.binlogVersion()
		if err != nil {
			return Event{}, err
		}
		r.fde = FormatDescriptionEvent{BinlogVersion: v}
		r.checksum = bl.pendingChecksum
		bl.binlogReader = r
	} else {
		if err := r.drain(); err != nil {
			return Event{}, fmt.Errorf("binlog: NextEvent: draining previous event: %w", err)
		}
		if r.checksum > 0 && r.hash != nil {
			got := r.hash.Sum32()
			r.limit = -1
			want := r.int4()
			if r.err != nil {
				return Event{}, fmt.Errorf("binlog: NextEvent: reading checksum: %w", r.err)
			}
			if got != want {
				return Event{}, fmt.Errorf("binlog: NextEvent: checksum failed got=%d want=%d", got, want)
			}
		}
		r.limit = -1
		r.rd = &packetReader{rd: bl.conn, seq: &bl.seq}
	}

	b, err := r.peek()
	if err != nil {
		return Event{}, err
	}
	switch b {
	case okMarker:
		r.int1()
	case eofMarker:
		eof := eofPacket{}
		if err := eof.decode(r, bl.hs.capabilityFlags); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	case errMarker:
		ep := errPacket{}
		if err := ep.decode(r, bl.hs.capabilityFlags); err != nil {
			return Event{}, err
		}
		return Event{}, errors.New(ep.errorMessage)
	default:
		return Event{}, fmt.Errorf("binlog: NextEvent: got 0x%02x, want OK-byte", b)
	}
	return nextEvent(r)
}

// DecodeTransactionPayload decompresses e.Payload (per e.CompressionType)
// and decodes the events it contains, in wire order. MySQL currently
// only ever sets CompressionType to "none" or ZSTD
// (binlog_transaction_compression enabled in Source.verifyPrerequisites).
func (bl *Remote) DecodeTransactionPayload(e TransactionPayloadEvent) ([]Event, error) {
	raw := e.Payload
	switch e.CompressionType {
	case transactionPayloadCompressionNone:
	case transactionPayloadCompressionZstd:
		decompressed, err := zstd.Decompress(make([]byte, 0, e.UncompressedSize), e.Payload)
		if err != nil {
			return nil, fmt.Errorf("binlog: decoding transaction payload: zstd: %w", err)
		}
		raw = decompressed
	default:
		return nil, fmt.Errorf("binlog: decoding transaction payload: unsupported compression type %d", e.CompressionType)
	}

	var fde FormatDescriptionEvent
	var checksum int
	if bl.binlogReader != nil {
		fde = bl.binlogReader.fde
		checksum = bl.binlogReader.checksum
	}
	r := &reader{
		rd:       bytes.NewReader(raw),
		limit:    -1,
		fde:      fde,
		checksum: checksum,
		tmeCache: make(map[uint64]*TableMapEvent),
	}

	var events []Event
	for first := true; ; first = false {
		if !first {
			if err := r.drain(); err != nil {
				return events, fmt.Errorf("binlog: decoding transaction payload: draining event: %w", err)
			}
			if r.checksum > 0 && r.hash != nil {
				got := r.hash.Sum32()
				r.limit = -1
				want := r.int4()
				if r.err == io.ErrUnexpectedEOF {
					break // no more events, just the end of the buffer
				}
				if r.err != nil {
					return events, fmt.Errorf("binlog: decoding transaction payload: reading checksum: %w", r.err)
				}
				if got != want {
					return events, fmt.Errorf("binlog: decoding transaction payload: checksum failed got=%d want=%d", got, want)
				}
			}
			r.limit = -1
		}
		if !r.more() {
			break
		}
		ev, err := nextEvent(r)
		if err != nil {
			return events, fmt.Errorf("binlog: decoding transaction payload: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// NextRow returns the next row of the current RowsEvent (the one most
// recently returned by NextEvent). valuesBeforeUpdate is populated
// only for UPDATE rows events. Returns io.EOF when exhausted.
func (bl *Remote) NextRow() (values []interface{}, valuesBeforeUpdate []interface{}, err error) {
	return nextRow(bl.binlogReader)
}

// Close closes the underlying connection.
func (bl *Remote) Close() error {
	return bl.conn.Close()
}

func (bl *Remote) write(event interface{ encode(w *writer) error }) error {
	w := newWriter(bl.conn, &bl.seq)
	if err := event.encode(w); err != nil {
		return err
	}
	return w.Close()
}

// comBinlogDump requests that the server begin streaming the binlog.
//
// https://dev.mysql.com/doc/internals/en/com-binlog-dump.html
type comBinlogDump struct {
	binlogPos      uint32
	flags          uint16
	serverID       uint32
	binlogFilename string
}

const comBinlogDumpCommand = 0x12

func (e comBinlogDump) encode(w *writer) error {
	w.int1(comBinlogDumpCommand)
	w.int4(e.binlogPos)
	w.int2(e.flags)
	w.int4(e.serverID)
	w.string(e.binlogFilename)
	return w.err
}
