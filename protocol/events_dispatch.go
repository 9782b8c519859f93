package binlog

import "hash/crc32"

// nextEvent decodes the next binlog Event from r. r.fde must already
// hold the FormatDescriptionEvent of the current binlog file (except
// when decoding that very event).
func nextEvent(r *reader) (Event, error) {
	r.limit = -1
	if r.checksum > 0 {
		r.hash = crc32.NewIEEE()
	} else {
		r.hash = nil
	}
	var h EventHeader
	if err := h.decode(r); err != nil {
		return Event{}, err
	}

	bodySize := int(h.EventSize) - 19 // header is always 19 bytes on the wire
	if h.EventType != FORMAT_DESCRIPTION_EVENT {
		bodySize -= r.checksum
	}
	if bodySize < 0 {
		bodySize = 0
	}
	r.limit = bodySize

	var data interface{}
	var err error
	switch h.EventType {
	case FORMAT_DESCRIPTION_EVENT:
		fde := FormatDescriptionEvent{}
		err = fde.decode(r, h.EventSize)
		r.fde = fde
		data = fde
	case ROTATE_EVENT:
		e := RotateEvent{}
		err = e.decode(r)
		data = e
	case QUERY_EVENT:
		e := QueryEvent{}
		err = e.decode(r)
		data = e
	case INTVAR_EVENT:
		e := IntVarEvent{}
		err = e.decode(r)
		data = e
	case USER_VAR_EVENT:
		e := UserVarEvent{}
		err = e.decode(r)
		data = e
	case RAND_EVENT:
		e := RandEvent{}
		err = e.decode(r)
		data = e
	case STOP_EVENT:
		data = StopEvent{}
	case XID_EVENT:
		e := XidEvent{}
		err = e.decode(r)
		data = e
	case GTID_EVENT:
		e := GtidEvent{}
		err = e.decode(r)
		data = e
	case ANONYMOUS_GTID_EVENT:
		e := AnonymousGtidEvent{}
		err = e.decode(r)
		data = e
	case PREVIOUS_GTIDS_EVENT:
		e := PreviousGtidsEvent{}
		err = e.decode(r)
		data = e
	case INCIDENT_EVENT:
		e := IncidentEvent{}
		err = e.decode(r)
		data = e
	case HEARTBEAT_EVENT, HEARTBEAT_LOG_EVENT_V2:
		data = HeartbeatEvent{}
	case ROWS_QUERY_EVENT:
		e := RowsQueryEvent{}
		err = e.decode(r)
		data = e
	case TABLE_MAP_EVENT:
		e := &TableMapEvent{}
		err = e.decode(r)
		if err == nil {
			r.tmeCache[e.tableID] = e
		}
		data = e
	case WRITE_ROWS_EVENTv0, WRITE_ROWS_EVENTv1, WRITE_ROWS_EVENTv2,
		UPDATE_ROWS_EVENTv0, UPDATE_ROWS_EVENTv1, UPDATE_ROWS_EVENTv2,
		DELETE_ROWS_EVENTv0, DELETE_ROWS_EVENTv1, DELETE_ROWS_EVENTv2:
		e := RowsEvent{}
		err = e.decode(r, h.EventType)
		r.re = e
		data = e
	case TRANSACTION_PAYLOAD_EVENT:
		e := TransactionPayloadEvent{}
		err = e.decode(r)
		data = e
	case PARTIAL_UPDATE_ROWS_EVENT:
		data = PartialUpdateRowsEvent{}
	default:
		// START_EVENT_V3, LOAD_EVENT, SLAVE_EVENT, CREATE_FILE_EVENT and
		// the other pre-5.0 LOAD DATA INFILE events are obsolete and
		// never observed against modern MySQL/MariaDB servers.
		data = UnknownEvent{}
	}
	if err != nil {
		return Event{}, err
	}
	return Event{Header: h, Data: data}, nil
}
