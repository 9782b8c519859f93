/*
Package binlog implements the client side of the MySQL binlog
replication protocol: connection-phase handshake, COM_BINLOG_DUMP,
and decoding of the event stream, with emphasis on row-based
replication (RBR) events.

To connect to a server:

	bl, err := binlog.Dial("tcp", "localhost:3306")
	if err != nil {
		return err
	}
	if bl.IsSSLSupported() {
		if err := bl.UpgradeSSL(nil); err != nil {
			return err
		}
	}
	if err := bl.Authenticate("root", "secret"); err != nil {
		return err
	}

To stream events:

	serverID := uint32(0) // non-zero waits for new events past end of log
	if serverID != 0 {
		if err := bl.SetHeartbeatPeriod(30 * time.Second); err != nil {
			return err
		}
	}
	if err := bl.Seek(serverID, "binlog.000001", 4); err != nil {
		return err
	}
	for {
		e, err := bl.NextEvent()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		re, ok := e.Data.(binlog.RowsEvent)
		if !ok {
			continue
		}
		for {
			row, _, err := bl.NextRow()
			if err != nil {
				if err == io.EOF {
					break
				}
				return err
			}
			for i, v := range row {
				col := re.Columns()[i]
				_ = col
				_ = v
			}
		}
	}
*/
package binlog
