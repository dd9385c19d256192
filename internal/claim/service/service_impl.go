package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/providers/pdf"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	refDoctype  = "Claim"
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     claimdomain.Repository
	Registry providerdomain.Registry
	Renderer pdf.Renderer
	Settings config.SettingsSource
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     claimdomain.Repository
	registry providerdomain.Registry
	renderer pdf.Renderer
	settings config.SettingsSource
	clock    clock.Clock
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func New(p Params) claimdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("claim.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		registry: p.Registry,
		renderer: p.Renderer,
		settings: p.Settings,
		clock:    p.Clock,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

func (s *Service) RegisterAppointment(ctx context.Context, req claimdomain.RegisterAppointmentRequest) (*claimdomain.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", claimdomain.ErrInvalidRequest, err)
	}
	provider, err := providerdomain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	appointment := &claimdomain.Appointment{
		ID:                  s.genID.Generate(),
		Name:                strings.TrimSpace(req.Name),
		Patient:             strings.TrimSpace(req.Patient),
		Provider:            provider.String(),
		Company:             strings.TrimSpace(req.Company),
		AuthorizationNumber: strings.TrimSpace(req.AuthorizationNumber),
		CardNo:              strings.TrimSpace(req.CardNo),
		CreatedAt:           s.clock.Now(),
	}
	if err := s.repo.InsertAppointment(ctx, s.db, appointment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, claimdomain.ErrAppointmentExists
		}
		return nil, err
	}
	return appointment, nil
}

func (s *Service) Create(ctx context.Context, req claimdomain.CreateClaimRequest) (*claimdomain.Claim, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", claimdomain.ErrInvalidRequest, err)
	}
	provider, err := providerdomain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	attendance := req.AttendanceDate.UTC()
	claim := &claimdomain.Claim{
		ID:              s.genID.Generate(),
		Provider:        provider.String(),
		Company:         strings.TrimSpace(req.Company),
		Patient:         strings.TrimSpace(req.Patient),
		PatientName:     req.PatientName,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Gender:          req.Gender,
		DateOfBirth:     req.DateOfBirth,
		TelephoneNo:     req.TelephoneNo,
		PatientFileNo:   req.PatientFileNo,
		Appointment:     strings.TrimSpace(req.Appointment),
		AuthorizationNo: strings.TrimSpace(req.AuthorizationNo),
		CardNo:          strings.TrimSpace(req.CardNo),
		FolioID:         uuid.NewString(),
		SerialNo:        req.SerialNo,
		ClaimYear:       attendance.Year(),
		ClaimMonth:      int(attendance.Month()),
		AttendanceDate:  attendance,
		PatientTypeCode: req.PatientTypeCode,
		PractitionerNo:  req.PractitionerNo,
		ClinicalNotes:   req.ClinicalNotes,
		DelayReason:     req.DelayReason,
		Status:          claimdomain.StatusDraft,
		CreatedBy:       req.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	existing, err := s.repo.FindOpenClaim(ctx, s.db, claim.Patient, claim.Appointment, claim.CardNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: claim %s is open for patient %s and appointment %s",
			claimdomain.ErrClaimExists, existing.ID, claim.Patient, claim.Appointment)
	}

	appointment, err := s.repo.FindAppointment(ctx, s.db, claim.Appointment)
	if err != nil {
		return nil, err
	}
	if err := claimdomain.CheckAppointment(claimdomain.GuardInput{Claim: claim, Appointment: appointment}); err != nil {
		return nil, err
	}

	claim.Items = s.newItems(claim, req.Items, 0, now)
	claim.Diseases = s.newDiseases(claim, req.Diseases, now)
	claim.TotalAmount = claimdomain.ItemsTotal(claim.Items)

	err = db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		folioNo, err := s.repo.NextFolioNo(ctx, tx, claimdomain.FolioCounter{
			ID:          s.genID.Generate(),
			Company:     claim.Company,
			Provider:    claim.Provider,
			ClaimYear:   claim.ClaimYear,
			ClaimMonth:  claim.ClaimMonth,
			PostingDate: now,
		})
		if err != nil {
			return fmt.Errorf("allocate folio number: %w", err)
		}
		claim.FolioNo = folioNo

		if err := s.repo.InsertClaim(ctx, tx, claim); err != nil {
			return err
		}
		claim.OriginalItems = s.snapshotItems(claim.Items)
		if err := s.repo.InsertItems(ctx, tx, claim.Items); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, claim.OriginalItems); err != nil {
			return err
		}
		return s.repo.InsertDiseases(ctx, tx, claim.Diseases)
	})
	if err != nil {
		return nil, err
	}

	logger.WithProvider(logger.WithContext(ctx, s.log), claim.Provider, claim.Company).Info("claim created",
		zap.String("claim_id", claim.ID.String()),
		zap.Int("folio_no", claim.FolioNo),
		zap.Int("items", len(claim.Items)),
	)
	return claim, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*claimdomain.Claim, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) AddItems(ctx context.Context, id snowflake.ID, inputs []claimdomain.ItemInput) (*claimdomain.Claim, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no items", claimdomain.ErrInvalidRequest)
	}
	for _, in := range inputs {
		if err := s.validate.Struct(in); err != nil {
			return nil, fmt.Errorf("%w: %v", claimdomain.ErrInvalidRequest, err)
		}
	}

	var claim *claimdomain.Claim
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		claim, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := claimdomain.Fire(claimdomain.EventEdit, claimdomain.GuardInput{Claim: claim})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		added := s.newItems(claim, inputs, len(claim.Items), now)
		if err := s.repo.InsertItems(ctx, tx, added); err != nil {
			return err
		}
		// new rows join the original snapshot so later merges keep their references
		originals := s.snapshotItems(added)
		for i := range originals {
			originals[i].Position += len(claim.OriginalItems)
		}
		if err := s.repo.InsertItems(ctx, tx, originals); err != nil {
			return err
		}

		claim.Items = append(claim.Items, added...)
		claim.OriginalItems = append(claim.OriginalItems, originals...)
		claim.TotalAmount = claimdomain.ItemsTotal(claim.Items)
		s.transition(ctx, claim, next)
		claim.UpdatedAt = now
		return s.repo.UpdateClaim(ctx, tx, claim)
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// Validate recomputes totals and folio ids, then moves the claim to Validated.
func (s *Service) Validate(ctx context.Context, id snowflake.ID) (*claimdomain.Claim, error) {
	var claim *claimdomain.Claim
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		claim, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if claim.Status == claimdomain.StatusSubmitted {
			return claimdomain.ErrClaimSubmitted
		}
		now := s.clock.Now()
		s.calculateTotals(claim, now)

		appointment, err := s.repo.FindAppointment(ctx, tx, claim.Appointment)
		if err != nil {
			return err
		}
		next, err := claimdomain.Fire(claimdomain.EventValidate, claimdomain.GuardInput{Claim: claim, Appointment: appointment})
		if err != nil {
			return err
		}

		if err := s.repo.SaveItems(ctx, tx, claim.Items); err != nil {
			return err
		}
		if err := s.repo.SaveDiseases(ctx, tx, claim.Diseases); err != nil {
			return err
		}
		s.transition(ctx, claim, next)
		claim.UpdatedAt = now
		return s.repo.UpdateClaim(ctx, tx, claim)
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// Submit renders the claim form, sends the folio and marks the claim
// Submitted. A failed provider call leaves the claim Validated.
func (s *Service) Submit(ctx context.Context, id snowflake.ID, submittedBy string) (*claimdomain.Claim, error) {
	claim, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	log := logger.WithProvider(logger.WithContext(ctx, s.log), claim.Provider, claim.Company).
		With(zap.String("claim_id", claim.ID.String()))

	provider, err := providerdomain.ParseProvider(claim.Provider)
	if err != nil {
		return nil, err
	}
	setting, err := s.settings.Get().Find(claim.Company, provider.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providerdomain.ErrProviderNotSet, err)
	}
	open, err := s.repo.CountOpenByAuthorization(ctx, s.db, claim.Patient, claim.AuthorizationNo, claim.CardNo)
	if err != nil {
		return nil, err
	}
	next, err := claimdomain.Fire(claimdomain.EventSubmit, claimdomain.GuardInput{
		Claim:                       claim,
		SubmitClaimMonth:            setting.SubmitClaimMonth,
		SubmitClaimYear:             setting.SubmitClaimYear,
		OpenClaimsWithAuthorization: open,
	})
	if err != nil {
		return nil, err
	}

	client, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	claimFile, err := s.renderer.RenderClaim(ctx, claimDocument(claim))
	if err != nil {
		return nil, fmt.Errorf("render claim file: %w", err)
	}

	now := s.clock.Now()
	folio := buildFolio(claim, setting, base64.StdEncoding.EncodeToString(claimFile), submittedBy, now)
	result, err := client.SubmitFolio(ctx, claim.Company, folio, providerdomain.Reference{Doctype: refDoctype, Docname: claim.ID.String()})
	if err != nil {
		log.Error("folio was not submitted", zap.Error(err))
		return nil, err
	}

	err = db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := s.repo.MarkItemsSubmitted(ctx, tx, claim.ID); err != nil {
			return err
		}
		logID := int64(result.LogID)
		claim.SubmitLogID = &logID
		claim.SubmittedAt = &now
		claim.UpdatedAt = now
		s.transition(ctx, claim, next)
		return s.repo.UpdateClaim(ctx, tx, claim)
	})
	if err != nil {
		return nil, err
	}
	for i := range claim.Items {
		claim.Items[i].Status = claimdomain.ItemSubmitted
	}

	log.Info("claim submitted", zap.Int("folio_no", claim.FolioNo), zap.String("description", result.Description))
	return claim, nil
}

func (s *Service) ReconcileRepeatedItems(ctx context.Context, id snowflake.ID) (*claimdomain.ReconcileResult, error) {
	var result *claimdomain.ReconcileResult
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		claim, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := claimdomain.Fire(claimdomain.EventEdit, claimdomain.GuardInput{Claim: claim})
		if err != nil {
			return err
		}

		var removed int64
		for _, original := range []bool{false, true} {
			items := claim.Items
			if original {
				items = claim.OriginalItems
			}
			merged, duplicates := claimdomain.ReconcileItems(items)
			if len(duplicates) == 0 {
				continue
			}
			if err := s.repo.SaveItems(ctx, tx, merged); err != nil {
				return err
			}
			ids := make([]snowflake.ID, 0, len(duplicates))
			for _, d := range duplicates {
				ids = append(ids, d.ID)
			}
			n, err := s.repo.DeleteItems(ctx, tx, ids)
			if err != nil {
				return err
			}
			if original {
				claim.OriginalItems = merged
			} else {
				claim.Items = merged
				removed = n
			}
		}

		claim.AllowChanges = true
		claim.TotalAmount = claimdomain.ItemsTotal(claim.Items)
		claim.UpdatedAt = s.clock.Now()
		s.transition(ctx, claim, next)
		if err := s.repo.UpdateClaim(ctx, tx, claim); err != nil {
			return err
		}
		result = &claimdomain.ReconcileResult{Claim: claim, Removed: removed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMergedClaimItems(ctx, result.Claim.Provider, int(result.Removed))
	logger.WithProvider(logger.WithContext(ctx, s.log), result.Claim.Provider, result.Claim.Company).Warn("repeated claim items merged and deleted",
		zap.String("claim_id", result.Claim.ID.String()),
		zap.Int64("removed", result.Removed),
	)
	return result, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*claimdomain.Claim, error) {
	claim, err := s.repo.FindClaim(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, claimdomain.ErrClaimNotFound
	}
	if claim.Items, err = s.repo.ListItems(ctx, tx, id, false); err != nil {
		return nil, err
	}
	if claim.OriginalItems, err = s.repo.ListItems(ctx, tx, id, true); err != nil {
		return nil, err
	}
	if claim.Diseases, err = s.repo.ListDiseases(ctx, tx, id); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Service) transition(ctx context.Context, claim *claimdomain.Claim, next claimdomain.Status) {
	if claim.Status == next {
		return
	}
	s.metrics.RecordClaimTransition(ctx, claim.Provider, string(claim.Status), string(next))
	claim.Status = next
}

func (s *Service) newItems(claim *claimdomain.Claim, inputs []claimdomain.ItemInput, offset int, now time.Time) []claimdomain.ClaimItem {
	items := make([]claimdomain.ClaimItem, 0, len(inputs))
	for i, in := range inputs {
		status := in.Status
		if status == "" {
			status = claimdomain.ItemSubmitted
		}
		items = append(items, claimdomain.ClaimItem{
			ID:               s.genID.Generate(),
			ClaimID:          claim.ID,
			Position:         offset + i + 1,
			FolioItemID:      uuid.NewString(),
			ItemCode:         strings.TrimSpace(in.ItemCode),
			ItemName:         in.ItemName,
			ItemQuantity:     in.ItemQuantity,
			UnitPrice:        in.UnitPrice,
			AmountClaimed:    claimdomain.RoundAmount(in.UnitPrice * in.ItemQuantity),
			ApprovalRefNo:    strings.TrimSpace(in.ApprovalRefNo),
			Status:           status,
			PatientEncounter: in.PatientEncounter,
			RefDoctype:       in.RefDoctype,
			RefDocname:       in.RefDocname,
			CreatedBy:        in.CreatedBy,
			DateCreated:      now,
		})
	}
	return items
}

func (s *Service) newDiseases(claim *claimdomain.Claim, inputs []claimdomain.DiseaseInput, now time.Time) []claimdomain.ClaimDisease {
	diseases := make([]claimdomain.ClaimDisease, 0, len(inputs))
	for _, in := range inputs {
		status := in.Status
		if status == "" {
			status = "Final"
		}
		diseases = append(diseases, claimdomain.ClaimDisease{
			ID:             s.genID.Generate(),
			ClaimID:        claim.ID,
			FolioDiseaseID: uuid.NewString(),
			DiseaseCode:    strings.TrimSpace(in.DiseaseCode),
			Status:         status,
			CreatedBy:      in.CreatedBy,
			DateCreated:    now,
		})
	}
	return diseases
}

// snapshotItems copies working rows into original rows with fresh ids.
func (s *Service) snapshotItems(items []claimdomain.ClaimItem) []claimdomain.ClaimItem {
	out := make([]claimdomain.ClaimItem, len(items))
	for i, item := range items {
		item.ID = s.genID.Generate()
		item.Original = true
		out[i] = item
	}
	return out
}

func (s *Service) calculateTotals(claim *claimdomain.Claim, now time.Time) {
	for i := range claim.Items {
		item := &claim.Items[i]
		item.AmountClaimed = claimdomain.RoundAmount(item.UnitPrice * item.ItemQuantity)
		if item.FolioItemID == "" {
			item.FolioItemID = uuid.NewString()
		}
		if item.DateCreated.IsZero() {
			item.DateCreated = now
		}
	}
	for i := range claim.Diseases {
		if claim.Diseases[i].FolioDiseaseID == "" {
			claim.Diseases[i].FolioDiseaseID = uuid.NewString()
		}
	}
	claim.TotalAmount = claimdomain.ItemsTotal(claim.Items)
}

func claimDocument(claim *claimdomain.Claim) pdf.ClaimDocument {
	doc := pdf.ClaimDocument{
		ClaimID:         claim.ID.String(),
		Provider:        claim.Provider,
		Company:         claim.Company,
		FolioNo:         claim.FolioNo,
		ClaimMonth:      claim.ClaimMonth,
		ClaimYear:       claim.ClaimYear,
		PatientName:     claim.PatientName,
		CardNo:          claim.CardNo,
		AuthorizationNo: claim.AuthorizationNo,
		PatientFileNo:   claim.PatientFileNo,
		AttendanceDate:  claim.AttendanceDate.Format(dateLayout),
		PatientTypeCode: claim.PatientTypeCode,
		PractitionerNo:  claim.PractitionerNo,
		Total:           claim.TotalAmount,
	}
	for _, d := range claim.Diseases {
		doc.Diseases = append(doc.Diseases, pdf.ClaimDisease{Code: d.DiseaseCode, Status: d.Status})
	}
	for _, item := range claim.Items {
		doc.Items = append(doc.Items, pdf.ClaimItem{
			ItemCode:      item.ItemCode,
			Description:   item.ItemName,
			Quantity:      item.ItemQuantity,
			UnitPrice:     item.UnitPrice,
			Amount:        item.AmountClaimed,
			ApprovalRefNo: item.ApprovalRefNo,
		})
	}
	return doc
}

func buildFolio(claim *claimdomain.Claim, setting config.ProviderSetting, claimFile, submittedBy string, now time.Time) providerdomain.Folio {
	entity := providerdomain.FolioEntity{
		FolioID:         claim.FolioID,
		ClaimYear:       claim.ClaimYear,
		ClaimMonth:      claim.ClaimMonth,
		FolioNo:         claim.FolioNo,
		SerialNo:        claim.SerialNo,
		FacilityCode:    setting.FacilityCode,
		CardNo:          strings.TrimSpace(claim.CardNo),
		BillNo:          claim.ID.String(),
		FirstName:       claim.FirstName,
		LastName:        claim.LastName,
		Gender:          claim.Gender,
		TelephoneNo:     claim.TelephoneNo,
		PatientFileNo:   claim.PatientFileNo,
		AuthorizationNo: claim.AuthorizationNo,
		AttendanceDate:  claim.AttendanceDate.Format(dateLayout),
		PatientTypeCode: claim.PatientTypeCode,
		PractitionerNo:  claim.PractitionerNo,
		ClinicalNotes:   claim.ClinicalNotes,
		AmountClaimed:   claimdomain.ItemsTotal(claim.Items),
		DelayReason:     claim.DelayReason,
		CreatedBy:       claim.CreatedBy,
		DateCreated:     claim.CreatedAt.Format(dateLayout),
		LastModifiedBy:  submittedBy,
		LastModified:    now.Format(stampLayout),
		ClaimFile:       claimFile,
	}
	entity.LateSubmissionReason = claim.DelayReason
	if providerID := strings.TrimSpace(setting.ProviderID); providerID != "" {
		entity.ProviderID = &providerID
	}
	if claim.DateOfBirth != nil {
		entity.DateOfBirth = claim.DateOfBirth.Format(dateLayout)
		entity.Age = strconv.Itoa(int(now.Sub(*claim.DateOfBirth).Hours() / 24 / 365))
	}

	for _, d := range claim.Diseases {
		created := d.DateCreated.Format(dateLayout)
		entity.FolioDiseases = append(entity.FolioDiseases, providerdomain.FolioDisease{
			DiseaseCode:    d.DiseaseCode,
			Status:         d.Status,
			CreatedBy:      d.CreatedBy,
			DateCreated:    created,
			LastModifiedBy: d.CreatedBy,
			LastModified:   created,
		})
	}
	for _, item := range claim.Items {
		created := item.DateCreated.Format(dateLayout)
		folioItem := providerdomain.FolioItem{
			FolioItemID:    item.FolioItemID,
			ItemCode:       item.ItemCode,
			ItemQuantity:   item.ItemQuantity,
			UnitPrice:      item.UnitPrice,
			AmountClaimed:  item.AmountClaimed,
			CreatedBy:      item.CreatedBy,
			DateCreated:    created,
			LastModifiedBy: item.CreatedBy,
			LastModified:   created,
		}
		if item.ApprovalRefNo != "" {
			ref := item.ApprovalRefNo
			folioItem.ApprovalRefNo = &ref
		}
		entity.FolioItems = append(entity.FolioItems, folioItem)
	}
	return providerdomain.Folio{Entities: []providerdomain.FolioEntity{entity}}
}
