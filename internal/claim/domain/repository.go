package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertAppointment(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	FindAppointment(ctx context.Context, db *gorm.DB, name string) (*Appointment, error)

	InsertClaim(ctx context.Context, db *gorm.DB, claim *Claim) error
	UpdateClaim(ctx context.Context, db *gorm.DB, claim *Claim) error
	FindClaim(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	FindOpenClaim(ctx context.Context, db *gorm.DB, patient, appointment, cardNo string) (*Claim, error)
	CountOpenByAuthorization(ctx context.Context, db *gorm.DB, patient, authorizationNo, cardNo string) (int64, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []ClaimItem) error
	ListItems(ctx context.Context, db *gorm.DB, claimID snowflake.ID, original bool) ([]ClaimItem, error)
	SaveItems(ctx context.Context, db *gorm.DB, items []ClaimItem) error
	DeleteItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
	MarkItemsSubmitted(ctx context.Context, db *gorm.DB, claimID snowflake.ID) error

	InsertDiseases(ctx context.Context, db *gorm.DB, diseases []ClaimDisease) error
	ListDiseases(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]ClaimDisease, error)
	SaveDiseases(ctx context.Context, db *gorm.DB, diseases []ClaimDisease) error

	// NextFolioNo increments and returns the folio counter of the period,
	// creating it at 1. It must run inside a transaction.
	NextFolioNo(ctx context.Context, db *gorm.DB, counter FolioCounter) (int, error)
}
