package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"
)

// RenderClaim builds the claim form attached to a folio as ClaimFile.
func (r *MarotoRenderer) RenderClaim(ctx context.Context, doc ClaimDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("claim %s has no items to render", doc.ClaimID)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, doc.Provider+" Claim Form", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, doc.Company, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Patient: "+doc.PatientName, props.Text{Top: 0}),
			text.New("Card no: "+doc.CardNo, props.Text{Top: 5}),
			text.New("Authorization no: "+doc.AuthorizationNo, props.Text{Top: 10}),
			text.New("File no: "+doc.PatientFileNo, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Folio no: "+strconv.Itoa(doc.FolioNo), props.Text{Top: 0, Align: align.Right}),
			text.New("Claim period: "+claimPeriod(doc.ClaimMonth, doc.ClaimYear), props.Text{Top: 5, Align: align.Right}),
			text.New("Attendance date: "+doc.AttendanceDate, props.Text{Top: 10, Align: align.Right}),
			text.New("Patient type: "+doc.PatientTypeCode, props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Diagnosis", props.Text{Style: fontstyle.Bold, Size: 10, Top: 3}),
	)
	for _, d := range doc.Diseases {
		m.AddRow(6,
			text.NewCol(4, d.Code, props.Text{Size: 9}),
			text.NewCol(8, d.Status, props.Text{Size: 9}),
		)
	}

	m.AddRow(10,
		text.NewCol(2, "Code", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(4, "Description", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
	)
	for _, item := range doc.Items {
		description := item.Description
		if item.ApprovalRefNo != "" {
			description += " (" + item.ApprovalRefNo + ")"
		}
		m.AddRow(7,
			text.NewCol(2, item.ItemCode, props.Text{Size: 9}),
			text.NewCol(4, description, props.Text{Size: 9}),
			text.NewCol(1, formatQuantity(item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatAmount(item.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, formatAmount(item.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(3, formatAmount(doc.Total), props.Text{Size: 9, Style: fontstyle.Bold, Top: 3, Align: align.Right}),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render claim %s: %w", doc.ClaimID, err)
	}
	return out.GetBytes(), nil
}

// RenderBatch renders every document it can. Failures are logged per claim
// and the remaining documents are still rendered.
func (r *MarotoRenderer) RenderBatch(ctx context.Context, docs []ClaimDocument) []Rendered {
	out := make([]Rendered, 0, len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			r.log.Warn("batch rendering cancelled", zap.Int("remaining", len(docs)-len(out)))
			break
		}
		b, err := r.RenderClaim(ctx, doc)
		if err != nil {
			r.log.Error("failed to render claim", zap.String("claim_id", doc.ClaimID), zap.Error(err))
			continue
		}
		out = append(out, Rendered{ClaimID: doc.ClaimID, PDF: b})
	}
	return out
}

func claimPeriod(month, year int) string {
	if month < 1 || month > 12 {
		return strconv.Itoa(year)
	}
	return time.Month(month).String() + " " + strconv.Itoa(year)
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
