package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&logdomain.ResponseLog{},
		&pricepackagedomain.PricePackage{},
		&pricepackagedomain.ExcludedService{},
		&pricepackagedomain.PackageUpdate{},
		&pricepackagedomain.PackageUpdateRow{},
		&coveragedomain.Plan{},
		&coveragedomain.ServiceTemplate{},
		&coveragedomain.ItemReference{},
		&coveragedomain.Coverage{},
		&itempricedomain.PriceList{},
		&itempricedomain.ItemPrice{},
		&claimdomain.Appointment{},
		&claimdomain.Claim{},
		&claimdomain.ClaimItem{},
		&claimdomain.ClaimDisease{},
		&claimdomain.FolioCounter{},
		&deliverynotedomain.DeliveryNote{},
		&deliverynotedomain.Item{},
		&deliverynotedomain.OriginalItem{},
		&apikeydomain.APIKey{},
		&auditdomain.AuditLog{},
	}
}

// Run brings the schema up to date. Postgres runs the embedded SQL
// migrations; other dialects are auto migrated from the models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
