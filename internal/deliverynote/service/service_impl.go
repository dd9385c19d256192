package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	"github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  deliverynotedomain.Repository
	Clock clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     deliverynotedomain.Repository
	clock    clock.Clock
	validate *validator.Validate
}

func New(p Params) deliverynotedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("deliverynote.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		validate: validator.New(),
	}
}

// Create stores the note and snapshots every item into the original items.
func (s *Service) Create(ctx context.Context, req deliverynotedomain.CreateRequest) (*deliverynotedomain.DeliveryNote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", deliverynotedomain.ErrInvalidRequest, err)
	}

	now := s.clock.Now()
	note := &deliverynotedomain.DeliveryNote{
		ID:               s.genID.Generate(),
		Company:          strings.TrimSpace(req.Company),
		Patient:          strings.TrimSpace(req.Patient),
		ReferenceDoctype: req.ReferenceDoctype,
		ReferenceName:    req.ReferenceName,
		Status:           deliverynotedomain.StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, in := range req.Items {
		code := strings.TrimSpace(in.ItemCode)
		note.Items = append(note.Items, deliverynotedomain.Item{
			ID:             s.genID.Generate(),
			NoteID:         note.ID,
			Position:       i + 1,
			ItemCode:       code,
			ItemName:       in.ItemName,
			Qty:            in.Qty,
			UOM:            in.UOM,
			IsRestricted:   in.IsRestricted,
			ApprovalNumber: strings.TrimSpace(in.ApprovalNumber),
			OriginalItem:   code,
			OriginalQty:    in.Qty,
		})
	}
	for _, item := range note.Items {
		note.OriginalItems = append(note.OriginalItems, s.snapshot(item))
	}

	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := s.repo.InsertNote(ctx, tx, note); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, note.Items); err != nil {
			return err
		}
		return s.repo.InsertOriginals(ctx, tx, note.OriginalItems)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) Validate(ctx context.Context, id snowflake.ID, req deliverynotedomain.ValidateRequest) (*deliverynotedomain.ValidateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", deliverynotedomain.ErrInvalidRequest, err)
	}

	var result *deliverynotedomain.ValidateResult
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		note, err := s.loadDraft(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := applyFlags(note, req.Items); err != nil {
			return err
		}
		mirrorStockFlags(note)

		var keep []deliverynotedomain.Item
		var removed []snowflake.ID
		for _, item := range note.Items {
			if item.OutOfStock {
				removed = append(removed, item.ID)
				continue
			}
			keep = append(keep, item)
		}

		if err := s.repo.SaveItems(ctx, tx, keep); err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, removed); err != nil {
			return err
		}
		note.Items = keep
		note.AllOutOfStock = false

		if len(keep) == 0 && len(removed) > 0 {
			restored := s.restoreOutOfStock(note)
			if err := s.repo.InsertItems(ctx, tx, restored); err != nil {
				return err
			}
			note.Items = restored
			note.AllOutOfStock = true
		}
		if err := s.repo.SaveOriginals(ctx, tx, note.OriginalItems); err != nil {
			return err
		}
		note.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateNote(ctx, tx, note); err != nil {
			return err
		}

		result = &deliverynotedomain.ValidateResult{Note: note, AllOutOfStock: note.AllOutOfStock}
		if !note.AllOutOfStock {
			result.Removed = len(removed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AllOutOfStock {
		logger.WithContext(ctx, s.log).Warn("all items are marked as out of stock",
			zap.String("delivery_note_id", id.String()))
	}
	return result, nil
}

// ConvertToInStock puts an out of stock original item back on the note.
func (s *Service) ConvertToInStock(ctx context.Context, id, originalID snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	var note *deliverynotedomain.DeliveryNote
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		note, err = s.loadDraft(ctx, tx, id)
		if err != nil {
			return err
		}

		idx := -1
		for i, original := range note.OriginalItems {
			if original.ID == originalID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return deliverynotedomain.ErrItemNotFound
		}
		original := &note.OriginalItems[idx]
		if !original.OutOfStock {
			return deliverynotedomain.ErrItemInStock
		}

		linked := -1
		for i, item := range note.Items {
			if original.DNDetail != 0 && item.ID == original.DNDetail {
				linked = i
				break
			}
		}
		if linked >= 0 {
			note.Items[linked].OutOfStock = false
			if err := s.repo.SaveItems(ctx, tx, note.Items[linked:linked+1]); err != nil {
				return err
			}
		} else {
			item := s.itemFromOriginal(*original, nextPosition(note.Items))
			if err := s.repo.InsertItems(ctx, tx, []deliverynotedomain.Item{item}); err != nil {
				return err
			}
			note.Items = append(note.Items, item)
			original.DNDetail = item.ID
		}

		original.OutOfStock = false
		if err := s.repo.SaveOriginals(ctx, tx, note.OriginalItems[idx:idx+1]); err != nil {
			return err
		}
		note.AllOutOfStock = false
		note.UpdatedAt = s.clock.Now()
		return s.repo.UpdateNote(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// Submit requires every restricted item to carry an approval number.
func (s *Service) Submit(ctx context.Context, id snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	var note *deliverynotedomain.DeliveryNote
	err := db.Transaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		note, err = s.loadDraft(ctx, tx, id)
		if err != nil {
			return err
		}

		inStock := 0
		for _, item := range note.Items {
			if item.OutOfStock {
				continue
			}
			inStock++
			if item.IsRestricted && strings.TrimSpace(item.ApprovalNumber) == "" {
				return fmt.Errorf("%w: set the approval number of %s on line %d",
					deliverynotedomain.ErrApprovalRequired, displayName(item), item.Position)
			}
		}
		if inStock == 0 {
			return deliverynotedomain.ErrAllOutOfStock
		}

		now := s.clock.Now()
		note.Status = deliverynotedomain.StatusSubmitted
		note.SubmittedAt = &now
		note.UpdatedAt = now
		return s.repo.UpdateNote(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	note, err := s.repo.FindNote(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, deliverynotedomain.ErrNoteNotFound
	}
	if note.Items, err = s.repo.ListItems(ctx, tx, id); err != nil {
		return nil, err
	}
	if note.OriginalItems, err = s.repo.ListOriginals(ctx, tx, id); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) loadDraft(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*deliverynotedomain.DeliveryNote, error) {
	note, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if note.Status == deliverynotedomain.StatusSubmitted {
		return nil, deliverynotedomain.ErrNoteSubmitted
	}
	return note, nil
}

func (s *Service) snapshot(item deliverynotedomain.Item) deliverynotedomain.OriginalItem {
	return deliverynotedomain.OriginalItem{
		ID:             s.genID.Generate(),
		NoteID:         item.NoteID,
		DNDetail:       item.ID,
		Position:       item.Position,
		ItemCode:       item.ItemCode,
		ItemName:       item.ItemName,
		Qty:            item.Qty,
		UOM:            item.UOM,
		IsRestricted:   item.IsRestricted,
		ApprovalNumber: item.ApprovalNumber,
		OutOfStock:     item.OutOfStock,
	}
}

func (s *Service) itemFromOriginal(original deliverynotedomain.OriginalItem, position int) deliverynotedomain.Item {
	return deliverynotedomain.Item{
		ID:             s.genID.Generate(),
		NoteID:         original.NoteID,
		Position:       position,
		ItemCode:       original.ItemCode,
		ItemName:       original.ItemName,
		Qty:            original.Qty,
		UOM:            original.UOM,
		IsRestricted:   original.IsRestricted,
		ApprovalNumber: original.ApprovalNumber,
		OriginalItem:   original.ItemCode,
		OriginalQty:    original.Qty,
	}
}

// restoreOutOfStock brings every out of stock original back as a flagged
// item, reusing the id of the item it was copied from.
func (s *Service) restoreOutOfStock(note *deliverynotedomain.DeliveryNote) []deliverynotedomain.Item {
	var restored []deliverynotedomain.Item
	for i := range note.OriginalItems {
		original := &note.OriginalItems[i]
		if !original.OutOfStock {
			continue
		}
		item := s.itemFromOriginal(*original, original.Position)
		if original.DNDetail != 0 {
			item.ID = original.DNDetail
		} else {
			original.DNDetail = item.ID
		}
		item.OutOfStock = true
		restored = append(restored, item)
	}
	return restored
}

func applyFlags(note *deliverynotedomain.DeliveryNote, flags []deliverynotedomain.ItemFlag) error {
	for _, flag := range flags {
		found := false
		for i := range note.Items {
			item := &note.Items[i]
			if item.ID != flag.ItemID {
				continue
			}
			found = true
			if flag.OutOfStock != nil {
				item.OutOfStock = *flag.OutOfStock
			}
			if flag.ApprovalNumber != nil {
				item.ApprovalNumber = strings.TrimSpace(*flag.ApprovalNumber)
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", deliverynotedomain.ErrItemNotFound, flag.ItemID)
		}
	}
	return nil
}

// mirrorStockFlags copies the stock flag of every item into its original.
func mirrorStockFlags(note *deliverynotedomain.DeliveryNote) {
	for _, item := range note.Items {
		for i := range note.OriginalItems {
			if note.OriginalItems[i].DNDetail == item.ID {
				note.OriginalItems[i].OutOfStock = item.OutOfStock
			}
		}
	}
}

func nextPosition(items []deliverynotedomain.Item) int {
	last := 0
	for _, item := range items {
		if item.Position > last {
			last = item.Position
		}
	}
	return last + 1
}

func displayName(item deliverynotedomain.Item) string {
	if item.ItemName != "" {
		return item.ItemName
	}
	return item.ItemCode
}
