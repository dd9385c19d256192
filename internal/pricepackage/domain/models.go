package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/snapshotdiff"
	"gorm.io/datatypes"
)

// PricePackage is one priced item of the latest provider snapshot.
type PricePackage struct {
	ID                        snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider                  string       `json:"provider" gorm:"type:text;not null;index:idx_price_packages_owner,priority:1"`
	Company                   string       `json:"company" gorm:"type:text;not null;index:idx_price_packages_owner,priority:2"`
	FacilityCode              string       `json:"facility_code,omitempty" gorm:"type:text"`
	ItemCode                  string       `json:"item_code" gorm:"type:text;not null;index"`
	PriceCode                 string       `json:"price_code,omitempty" gorm:"type:text"`
	LevelPriceCode            string       `json:"level_price_code,omitempty" gorm:"type:text"`
	OldItemCode               string       `json:"old_item_code,omitempty" gorm:"type:text"`
	ItemTypeID                string       `json:"item_type_id,omitempty" gorm:"type:text"`
	ItemName                  string       `json:"item_name" gorm:"type:text"`
	CleanName                 string       `json:"clean_name,omitempty" gorm:"type:text"`
	Strength                  string       `json:"strength,omitempty" gorm:"type:text"`
	Dosage                    string       `json:"dosage,omitempty" gorm:"type:text"`
	PackageID                 string       `json:"package_id,omitempty" gorm:"type:text"`
	SchemeID                  string       `json:"scheme_id,omitempty" gorm:"type:text;index"`
	FacilityLevelCode         string       `json:"facility_level_code,omitempty" gorm:"type:text"`
	ProviderRef               string       `json:"provider_ref,omitempty" gorm:"type:text"`
	UnitPrice                 float64      `json:"unit_price" gorm:"type:numeric;not null;default:0"`
	IsRestricted              bool         `json:"is_restricted" gorm:"not null;default:false"`
	MaximumQuantity           *int         `json:"maximum_quantity,omitempty"`
	AvailableInLevels         string       `json:"available_in_levels,omitempty" gorm:"type:text"`
	PractitionerQualification string       `json:"practitioner_qualifications,omitempty" gorm:"column:practitioner_qualifications;type:text"`
	IsActive                  bool         `json:"is_active" gorm:"not null;default:true"`
	LogID                     snowflake.ID `json:"log_id" gorm:"not null"`
	SnapshotAt                time.Time    `json:"snapshot_at" gorm:"not null"`
}

func (PricePackage) TableName() string { return "price_packages" }

// ExcludedService lists products of a scheme that do not cover an item.
type ExcludedService struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider            string       `json:"provider" gorm:"type:text;not null;index:idx_excluded_services_owner,priority:1"`
	Company             string       `json:"company" gorm:"type:text;not null;index:idx_excluded_services_owner,priority:2"`
	FacilityCode        string       `json:"facility_code,omitempty" gorm:"type:text"`
	ItemCode            string       `json:"item_code" gorm:"type:text;not null"`
	SchemeID            string       `json:"scheme_id" gorm:"type:text"`
	SchemeName          string       `json:"scheme_name,omitempty" gorm:"type:text"`
	ExcludedForProducts string       `json:"excluded_for_products,omitempty" gorm:"type:text"`
	LogID               snowflake.ID `json:"log_id" gorm:"not null"`
	SnapshotAt          time.Time    `json:"snapshot_at" gorm:"not null"`
}

func (ExcludedService) TableName() string { return "excluded_services" }

type Section string

const (
	SectionPricePackage     Section = "price_package"
	SectionExcludedServices Section = "excluded_services"
)

type ChangeType string

const (
	Changed ChangeType = "Changed"
	New     ChangeType = "New"
	Deleted ChangeType = "Deleted"
)

// PackageUpdate is the persisted difference between two consecutive snapshots.
type PackageUpdate struct {
	ID            snowflake.ID       `json:"id" gorm:"primaryKey"`
	Provider      string             `json:"provider" gorm:"type:text;not null;index:idx_package_updates_owner,priority:1"`
	Company       string             `json:"company" gorm:"type:text;not null;index:idx_package_updates_owner,priority:2"`
	CurrentLogID  snowflake.ID       `json:"current_log_id" gorm:"not null"`
	PreviousLogID snowflake.ID       `json:"previous_log_id" gorm:"not null"`
	CreatedAt     time.Time          `json:"created_at" gorm:"not null;index:idx_package_updates_owner,priority:3"`
	Rows          []PackageUpdateRow `json:"rows" gorm:"foreignKey:UpdateID"`
}

func (PackageUpdate) TableName() string { return "package_updates" }

type PackageUpdateRow struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	UpdateID   snowflake.ID   `json:"update_id" gorm:"not null;index"`
	Section    Section        `json:"section" gorm:"type:text;not null"`
	ChangeType ChangeType     `json:"change_type" gorm:"type:text;not null"`
	ItemCode   string         `json:"item_code,omitempty" gorm:"type:text"`
	PriceCode  string         `json:"price_code,omitempty" gorm:"type:text"`
	SchemeID   string         `json:"scheme_id,omitempty" gorm:"type:text"`
	Record     datatypes.JSON `json:"record" gorm:"type:jsonb"`
}

func (PackageUpdateRow) TableName() string { return "package_update_rows" }

// PackageFromRecord maps a raw provider row. Jubilee reports ItemPrice and
// ProviderID where NHIF reports UnitPrice and PackageID; Jubilee rows carry
// no active flag and are always active.
func PackageFromRecord(provider providerdomain.Provider, rec snapshotdiff.Record) PricePackage {
	pkg := PricePackage{
		Provider:                  provider.String(),
		ItemCode:                  rec.String("ItemCode"),
		PriceCode:                 rec.String("PriceCode"),
		LevelPriceCode:            rec.String("LevelPriceCode"),
		OldItemCode:               rec.String("OldItemCode"),
		ItemTypeID:                rec.String("ItemTypeID"),
		ItemName:                  rec.String("ItemName"),
		CleanName:                 rec.String("CleanName"),
		Strength:                  rec.String("Strength"),
		Dosage:                    rec.String("Dosage"),
		PackageID:                 rec.String("PackageID"),
		SchemeID:                  rec.String("SchemeID"),
		FacilityLevelCode:         rec.String("FacilityLevelCode"),
		ProviderRef:               rec.String("ProviderID"),
		UnitPrice:                 rec.Float("UnitPrice"),
		IsRestricted:              rec.Bool("IsRestricted"),
		AvailableInLevels:         rec.String("AvailableInLevels"),
		PractitionerQualification: rec.String("PractitionerQualifications"),
		IsActive:                  true,
	}
	if provider == providerdomain.Jubilee {
		pkg.UnitPrice = rec.Float("ItemPrice")
	} else if _, ok := rec["IsActive"]; ok {
		pkg.IsActive = rec.Bool("IsActive")
	}
	if raw := rec.String("MaximumQuantity"); raw != "" {
		q := int(math.Round(rec.Float("MaximumQuantity")))
		pkg.MaximumQuantity = &q
	}
	return pkg
}

func ExcludedFromRecord(provider providerdomain.Provider, rec snapshotdiff.Record) ExcludedService {
	return ExcludedService{
		Provider:            provider.String(),
		ItemCode:            rec.String("ItemCode"),
		SchemeID:            rec.String("SchemeID"),
		SchemeName:          rec.String("SchemeName"),
		ExcludedForProducts: rec.String("ExcludedForProducts"),
	}
}
