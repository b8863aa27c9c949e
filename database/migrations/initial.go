package migrations

import (
	"time"

	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20240601000000_create_instances_table", &CreateInstancesTable{})
	migration.Register("20240601000001_create_products_table", &CreateProductsTable{})
	migration.Register("20240601000002_create_offers_table", &CreateOffersTable{})
	migration.Register("20240601000003_create_catalog_state_table", &CreateCatalogStateTable{})
}

// -------- 0001: instances --------

type CreateInstancesTable struct{}

func (m *CreateInstancesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Instance{})
}

func (m *CreateInstancesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("instances")
}

// -------- 0002: products --------

type CreateProductsTable struct{}

func (m *CreateProductsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{})
}

func (m *CreateProductsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("products")
}

// -------- 0003: offers --------

type CreateOffersTable struct{}

func (m *CreateOffersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Offer{})
}

func (m *CreateOffersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("offers")
}

// -------- 0004: catalog state --------

type CreateCatalogStateTable struct{}

func (m *CreateCatalogStateTable) Up(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.CatalogState{}); err != nil {
		return err
	}
	return db.FirstOrCreate(&models.CatalogState{ID: models.CatalogStateID, UpdatedAt: time.Now().UTC()},
		models.CatalogState{ID: models.CatalogStateID}).Error
}

func (m *CreateCatalogStateTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("catalog_state")
}
