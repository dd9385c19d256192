package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() claimdomain.Repository {
	return &repo{}
}

func (r *repo) InsertAppointment(ctx context.Context, db *gorm.DB, appointment *claimdomain.Appointment) error {
	return db.WithContext(ctx).Create(appointment).Error
}

func (r *repo) FindAppointment(ctx context.Context, db *gorm.DB, name string) (*claimdomain.Appointment, error) {
	var appointment claimdomain.Appointment
	err := db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&appointment).Error
	if err != nil {
		return nil, err
	}
	if appointment.ID == 0 {
		return nil, nil
	}
	return &appointment, nil
}

func (r *repo) InsertClaim(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim) error {
	return db.WithContext(ctx).Create(claim).Error
}

func (r *repo) UpdateClaim(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim) error {
	return db.WithContext(ctx).Save(claim).Error
}

func (r *repo) FindClaim(ctx context.Context, db *gorm.DB, id snowflake.ID) (*claimdomain.Claim, error) {
	var claim claimdomain.Claim
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&claim).Error
	if err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}

func (r *repo) FindOpenClaim(ctx context.Context, db *gorm.DB, patient, appointment, cardNo string) (*claimdomain.Claim, error) {
	var claim claimdomain.Claim
	err := db.WithContext(ctx).
		Where("patient = ? AND appointment = ? AND card_no = ? AND status <> ?", patient, appointment, cardNo, claimdomain.StatusSubmitted).
		Limit(1).
		Find(&claim).Error
	if err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}

func (r *repo) CountOpenByAuthorization(ctx context.Context, db *gorm.DB, patient, authorizationNo, cardNo string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&claimdomain.Claim{}).
		Where("patient = ? AND authorization_no = ? AND card_no = ? AND status <> ?", patient, authorizationNo, cardNo, claimdomain.StatusSubmitted).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []claimdomain.ClaimItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, claimID snowflake.ID, original bool) ([]claimdomain.ClaimItem, error) {
	var items []claimdomain.ClaimItem
	err := db.WithContext(ctx).
		Where("claim_id = ? AND original = ?", claimID, original).
		Order("position ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SaveItems(ctx context.Context, db *gorm.DB, items []claimdomain.ClaimItem) error {
	for i := range items {
		if err := db.WithContext(ctx).Save(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&claimdomain.ClaimItem{})
	return res.RowsAffected, res.Error
}

func (r *repo) MarkItemsSubmitted(ctx context.Context, db *gorm.DB, claimID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&claimdomain.ClaimItem{}).
		Where("claim_id = ? AND original = ?", claimID, false).
		Update("status", claimdomain.ItemSubmitted).Error
}

func (r *repo) InsertDiseases(ctx context.Context, db *gorm.DB, diseases []claimdomain.ClaimDisease) error {
	if len(diseases) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&diseases).Error
}

func (r *repo) ListDiseases(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]claimdomain.ClaimDisease, error) {
	var diseases []claimdomain.ClaimDisease
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("id ASC").
		Find(&diseases).Error
	if err != nil {
		return nil, err
	}
	return diseases, nil
}

func (r *repo) SaveDiseases(ctx context.Context, db *gorm.DB, diseases []claimdomain.ClaimDisease) error {
	for i := range diseases {
		if err := db.WithContext(ctx).Save(&diseases[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) NextFolioNo(ctx context.Context, tx *gorm.DB, counter claimdomain.FolioCounter) (int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.WithContext(ctx).
			Model(&claimdomain.FolioCounter{}).
			Where("company = ? AND provider = ? AND claim_year = ? AND claim_month = ?",
				counter.Company, counter.Provider, counter.ClaimYear, counter.ClaimMonth).
			Updates(map[string]any{
				"folio_no":     gorm.Expr("folio_no + 1"),
				"posting_date": counter.PostingDate,
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected > 0 {
			var current claimdomain.FolioCounter
			err := tx.WithContext(ctx).
				Where("company = ? AND provider = ? AND claim_year = ? AND claim_month = ?",
					counter.Company, counter.Provider, counter.ClaimYear, counter.ClaimMonth).
				Take(&current).Error
			if err != nil {
				return 0, err
			}
			return current.FolioNo, nil
		}

		// savepoint so a lost insert race leaves the outer transaction usable
		counter.FolioNo = 1
		err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return sp.Create(&counter).Error
		})
		if err == nil {
			return 1, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return 0, err
		}
	}
	return 0, gorm.ErrDuplicatedKey
}
