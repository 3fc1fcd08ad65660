package migrations

import (
	"context"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"ticket-checkin/internal/store/sqlstore"
)

func init() {
	m.Register(func(app core.App) error {
		return sqlstore.Migrate(context.Background(), app.DB())
	}, func(app core.App) error {
		return sqlstore.Drop(context.Background(), app.DB())
	})
}
