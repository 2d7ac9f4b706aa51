package ops

import (
	"context"
	"database/sql"
	"os"

	"github.com/p2pmart/dealroom/internal/health"
)

// FileCheck reports whether a state file's directory is reachable. A
// missing file is fine before first use; an unreadable one is not.
func FileCheck(name, path string) health.Checker {
	return func(ctx context.Context) health.Status {
		if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
			return health.Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: name, Healthy: true}
	}
}

// DBCheck pings the database
func DBCheck(name string, db *sql.DB) health.Checker {
	return func(ctx context.Context) health.Status {
		if err := db.PingContext(ctx); err != nil {
			return health.Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: name, Healthy: true}
	}
}
