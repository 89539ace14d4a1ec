// Package export writes decided conversations to CSV and delivers the files
// to the processing team's FTP drop.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/model"
)

var csvHeader = []string{
	"conversation_id", "decision", "phase", "turns",
	"property_price", "down_payment", "property_city", "property_state",
	"loan_purpose", "current_country", "violations", "updated_at",
}

// WriteCSV writes every decided conversation to a timestamped CSV file under
// dir and returns the file path. Conversations without a final decision are
// skipped.
func WriteCSV(dir string, states []model.ConversationState) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create dir")
	}

	path := filepath.Join(dir, fmt.Sprintf("prequal-decisions-%s.csv", time.Now().UTC().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", eris.Wrap(err, "export: write header")
	}

	written := 0
	for i := range states {
		state := &states[i]
		if state.FinalDecision == "" {
			continue
		}
		if err := w.Write(row(state)); err != nil {
			return "", eris.Wrapf(err, "export: write row %s", state.ConversationID)
		}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "export: flush")
	}

	zap.L().Info("export: wrote decisions",
		zap.String("file", path),
		zap.Int("rows", written),
	)
	return path, nil
}

func row(state *model.ConversationState) []string {
	return []string{
		state.ConversationID,
		string(state.FinalDecision),
		string(state.Phase),
		fmt.Sprintf("%d", state.TurnNumber),
		numberCell(state, model.SlotPropertyPrice),
		numberCell(state, model.SlotDownPayment),
		textCell(state, model.SlotPropertyCity),
		textCell(state, model.SlotPropertyState),
		textCell(state, model.SlotLoanPurpose),
		textCell(state, model.SlotCurrentCountry),
		violationCell(state),
		state.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// violationCell joins hard violations into one semicolon-separated cell.
func violationCell(state *model.ConversationState) string {
	msgs := make([]string, 0, len(state.ValidationErrors))
	for _, v := range state.ValidationErrors {
		if v.Severity == model.SeverityError {
			msgs = append(msgs, v.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func numberCell(state *model.ConversationState, name model.SlotName) string {
	sv, ok := state.Slots[name]
	if !ok {
		return ""
	}
	n, ok := sv.Value.(float64)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.2f", n)
}

func textCell(state *model.ConversationState, name model.SlotName) string {
	sv, ok := state.Slots[name]
	if !ok {
		return ""
	}
	s, _ := sv.Value.(string)
	return s
}
