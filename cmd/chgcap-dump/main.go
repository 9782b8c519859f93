// Command chgcap-dump connects to a MySQL replica endpoint and prints
// the decoded change stream to stdout, one line per record.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	mysqlcdc "github.com/neverchanje/chgcap-mysql"
)

func main() {
	hostname := flag.String("host", "127.0.0.1", "MySQL host")
	port := flag.Int("port", 3306, "MySQL port")
	username := flag.String("user", "root", "MySQL username")
	password := flag.String("password", "", "MySQL password")
	serverID := flag.Uint("server-id", 0, "replica server-id (0 = random)")
	databaseList := flag.String("databases", "", "comma-separated database_list regexes")
	tableList := flag.String("tables", "", "comma-separated table_list regexes")
	includeSchema := flag.Bool("include-schema-changes", true, "emit DDL records")
	flag.Parse()

	cfg := mysqlcdc.Config{
		Hostname:             *hostname,
		Port:                 *port,
		Username:             *username,
		Password:             *password,
		ServerID:             uint32(*serverID),
		DatabaseList:         splitNonEmpty(*databaseList),
		TableList:            splitNonEmpty(*tableList),
		IncludeSchemaChanges: *includeSchema,
		ConnectTimeout:       10 * time.Second,
		FailureHandlingMode:  mysqlcdc.FailureHandlingWarn,
	}

	src, err := mysqlcdc.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chgcap-dump:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	stream, err := src.Stream(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chgcap-dump:", err)
		os.Exit(1)
	}

	for env := range stream {
		if env.Err != nil {
			fmt.Fprintln(os.Stderr, "chgcap-dump: error:", env.Err)
			continue
		}
		rec := env.Record
		if rec.Data.IsSchema {
			fmt.Printf("%s\t%s.%s\tSchemaChange(%s)\n", rec.Position, rec.DatabaseName, rec.TableName, rec.Data.SchemaKind)
			continue
		}
		for _, rc := range rec.Data.Rows {
			fmt.Printf("%s\t%s.%s\t%s\n", rec.Position, rec.DatabaseName, rec.TableName, rc)
		}
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
