// Package mirror keeps the local store and an optional remote mirror
// consistent: a pull at startup and an asynchronous push per local write.
package mirror

import (
	"context"
	"fmt"
)

const (
	TableUsers          = "users"
	TableRooms          = "rooms"
	TableMessages       = "messages"
	TableDirectMessages = "direct_messages"
)

// Tables lists mirrored tables in import order: parents first.
var Tables = []string{TableUsers, TableRooms, TableMessages, TableDirectMessages}

// Row is one mirrored record as a flat field map.
type Row map[string]any

// Record is a row together with its remote-assigned id.
type Record struct {
	ID  string
	Row Row
}

// Remote is a table-scoped store keyed by an externally assigned id.
type Remote interface {
	// Insert stores row and returns its remote id. When row carries an "id"
	// field that value is the key and an existing record with it is left as is.
	Insert(ctx context.Context, table string, row Row) (string, error)
	// Update merges fields into the record with the given remote id.
	Update(ctx context.Context, table, id string, fields Row) error
	// Select returns every record of table.
	Select(ctx context.Context, table string) ([]Record, error)
	Close(ctx context.Context) error
}

func ValidTable(table string) error {
	for _, t := range Tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("mirror: unknown table %q", table)
}
