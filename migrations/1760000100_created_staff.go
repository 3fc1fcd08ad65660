package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

// StaffCollection holds the accounts that may use the check-in API.
const StaffCollection = "staff"

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewAuthCollection(StaffCollection)
		collection.Fields.Add(&core.TextField{
			Name: "name",
			Max:  120,
		})
		collection.Fields.Add(&core.TextField{
			Name: "gate",
			Max:  64,
		})

		// staff can only see their own account
		collection.ViewRule = types.Pointer("id = @request.auth.id")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(StaffCollection)
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
