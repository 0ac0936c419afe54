package internal

import (
	// Blank imports register the database drivers the sql and jobqueue
	// audit sinks can be configured with.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
