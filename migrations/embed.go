// Package migrations embeds the link history schema into the binary.
//
// Import it for its side effect before calling database.DB.Migrate.
package migrations

import (
	"embed"

	"github.com/Gowrisankar10354/ac-remote-final/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
