// Package all registers every compiled-in storage backend. Import it for side
// effects from binaries that select a backend by configuration.
package all

import (
	_ "qimport/internal/storage/mssql"
	_ "qimport/internal/storage/mysql"
	_ "qimport/internal/storage/postgres"
	_ "qimport/internal/storage/sqlite"
)
