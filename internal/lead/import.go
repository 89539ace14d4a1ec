// Package lead imports borrower leads from spreadsheet exports and pre-seeds
// their conversations, so the engine never asks for what the intake form
// already collected.
package lead

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/convstore"
	"github.com/sells-group/prequal-cli/internal/engine"
	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
)

// seedConfidence is assigned to imported values. Form fields are typed by the
// borrower, so they rank just below an explicit in-conversation confirmation.
const seedConfidence = 0.95

// columnSlots maps normalized spreadsheet headers to slot names.
var columnSlots = map[string]model.SlotName{
	"city":            model.SlotPropertyCity,
	"property city":   model.SlotPropertyCity,
	"state":           model.SlotPropertyState,
	"property state":  model.SlotPropertyState,
	"price":           model.SlotPropertyPrice,
	"property price":  model.SlotPropertyPrice,
	"down payment":    model.SlotDownPayment,
	"purpose":         model.SlotLoanPurpose,
	"loan purpose":    model.SlotLoanPurpose,
	"country":         model.SlotCurrentCountry,
	"current country": model.SlotCurrentCountry,
}

// Importer reads lead spreadsheets and creates pre-seeded conversations.
type Importer struct {
	store         engine.Store
	conversations convstore.Store
}

// NewImporter creates an Importer over the given slot store and conversation store.
func NewImporter(store engine.Store, conversations convstore.Store) Importer {
	return Importer{store: store, conversations: conversations}
}

// ImportFile reads the first sheet of an XLSX lead export and saves one
// pre-seeded conversation per data row. Returns the number of conversations
// created. Rows that fail to parse are logged and skipped.
func (im Importer) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "lead: open file")
	}
	if len(f.Sheets) == 0 {
		return 0, eris.New("lead: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return 0, nil
	}

	cols := headerColumns(sheet.Rows[0])
	idCol, hasID := cols["conversation id"]

	imported := 0
	for i, row := range sheet.Rows[1:] {
		id := ""
		if hasID {
			id = strings.TrimSpace(cellString(row, idCol))
		}
		if id == "" {
			id = uuid.New().String()
		}

		state := model.NewConversationState(id)
		seeded := im.seedRow(state, row, cols)
		if seeded == 0 {
			zap.L().Warn("lead: row has no usable values, skipped",
				zap.Int("row", i+2),
			)
			continue
		}

		if err := im.conversations.Save(ctx, state); err != nil {
			return imported, eris.Wrapf(err, "lead: save conversation %s", id)
		}
		imported++
	}

	zap.L().Info("lead: import complete",
		zap.String("file", path),
		zap.Int("conversations", imported),
	)
	return imported, nil
}

// seedRow sets every mapped, non-empty cell on the state and returns how many
// slots were seeded.
func (im Importer) seedRow(state *model.ConversationState, row *xlsx.Row, cols map[string]int) int {
	seeded := 0
	for header, idx := range cols {
		name, ok := columnSlots[header]
		if !ok {
			continue
		}
		raw := strings.TrimSpace(cellString(row, idx))
		if raw == "" {
			continue
		}

		def := im.store.Reg.ByName(name)
		if def == nil {
			continue
		}

		var value any = raw
		if def.Kind == model.KindNumber {
			amount, ok := extract.ParseAmount(raw)
			if !ok {
				zap.L().Warn("lead: unparseable amount, skipped",
					zap.String("conversation", state.ConversationID),
					zap.String("column", header),
					zap.String("value", raw),
				)
				continue
			}
			value = amount
		}

		im.store.Set(state, name, value, seedConfidence, model.SourceDeterministic)
		seeded++
	}
	return seeded
}

func headerColumns(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for i, cell := range row.Cells {
		h := strings.ToLower(strings.TrimSpace(cell.String()))
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

func cellString(row *xlsx.Row, idx int) string {
	if idx < 0 || idx >= len(row.Cells) {
		return ""
	}
	return row.Cells[idx].String()
}
