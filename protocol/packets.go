package binlog

import "fmt"

// Generic response packets shared by the text protocol and the
// connection-phase handshake.
//
// https://dev.mysql.com/doc/internals/en/generic-response-packets.html

const (
	okMarker  = 0x00
	eofMarker = 0xfe
	errMarker = 0xff
)

type okPacket struct {
	affectedRows uint64
	lastInsertID uint64
	statusFlags  uint16
	warnings     uint16
}

func (p *okPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != okMarker {
		return fmt.Errorf("binlog: okPacket.decode: got header 0x%02x", header)
	}
	p.affectedRows = r.intN()
	p.lastInsertID = r.intN()
	if capabilities&CLIENT_PROTOCOL_41 != 0 {
		p.statusFlags = r.int2()
		p.warnings = r.int2()
	} else if capabilities&CLIENT_TRANSACTIONS != 0 {
		p.statusFlags = r.int2()
	}
	return r.err
}

type eofPacket struct {
	warnings    uint16
	statusFlags uint16
}

func (p *eofPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != eofMarker {
		return fmt.Errorf("binlog: eofPacket.decode: got header 0x%02x", header)
	}
	if capabilities&CLIENT_PROTOCOL_41 != 0 {
		p.warnings = r.int2()
		p.statusFlags = r.int2()
	}
	return r.err
}

type errPacket struct {
	errorCode      uint16
	sqlStateMarker string
	sqlState       string
	errorMessage   string
}

func (p *errPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != errMarker {
		return fmt.Errorf("binlog: errPacket.decode: got header 0x%02x", header)
	}
	p.errorCode = r.int2()
	if capabilities&CLIENT_PROTOCOL_41 != 0 {
		p.sqlStateMarker = r.string(1)
		p.sqlState = r.string(5)
	}
	p.errorMessage = r.stringEOF()
	return r.err
}
