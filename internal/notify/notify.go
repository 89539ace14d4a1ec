// Package notify publishes finished pre-qualification decisions to the CRM
// systems of record: a Salesforce Lead and a Notion tracking page. Publishing
// is best-effort and never influences the conversation itself.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prequal-cli/internal/config"
	"github.com/sells-group/prequal-cli/internal/model"
	notionpkg "github.com/sells-group/prequal-cli/pkg/notion"
	sfpkg "github.com/sells-group/prequal-cli/pkg/salesforce"
)

// decisionLabels maps decision codes to the human-readable status used in
// both Salesforce and Notion.
var decisionLabels = map[model.Decision]string{
	model.DecisionPreApproved: "Pre-Approved",
	model.DecisionRejected:    "Declined",
	model.DecisionNeedsReview: "Needs Review",
}

// Publisher sends a completed conversation's decision to Salesforce and
// Notion. Either client may be nil, in which case that target is skipped.
type Publisher struct {
	sf     sfpkg.Client
	notion notionpkg.Client
	cfg    config.NotionConfig
}

// NewPublisher creates a Publisher over the given clients.
func NewPublisher(sf sfpkg.Client, notion notionpkg.Client, cfg config.NotionConfig) *Publisher {
	return &Publisher{sf: sf, notion: notion, cfg: cfg}
}

// PublishDecision pushes the decision to both targets concurrently — they
// are independent systems and neither blocks the other. Failures are logged,
// not returned: the caller has already answered the user.
func (p *Publisher) PublishDecision(ctx context.Context, state *model.ConversationState) {
	if state.FinalDecision == "" {
		return
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if p.sf == nil {
			return nil
		}
		if err := p.publishSalesforce(gCtx, state); err != nil {
			zap.L().Error("notify: salesforce publish failed",
				zap.String("conversation", state.ConversationID),
				zap.Error(err),
			)
		}
		return nil
	})

	g.Go(func() error {
		if p.notion == nil || p.cfg.DecisionDB == "" {
			return nil
		}
		if err := p.publishNotion(gCtx, state); err != nil {
			zap.L().Error("notify: notion publish failed",
				zap.String("conversation", state.ConversationID),
				zap.Error(err),
			)
		}
		return nil
	})

	g.Wait() //nolint:errcheck // failures are logged per-target above
}

func (p *Publisher) publishSalesforce(ctx context.Context, state *model.ConversationState) error {
	fields := map[string]any{
		"Prequal_Decision__c": decisionLabels[state.FinalDecision],
		"Status":              sfStatus(state.FinalDecision),
	}
	if city, ok := textSlot(state, model.SlotPropertyCity); ok {
		fields["City"] = city
	}
	if st, ok := textSlot(state, model.SlotPropertyState); ok {
		fields["State"] = st
	}
	if price, ok := numberSlot(state, model.SlotPropertyPrice); ok {
		fields["Property_Price__c"] = price
	}
	if down, ok := numberSlot(state, model.SlotDownPayment); ok {
		fields["Down_Payment__c"] = down
	}
	if purpose, ok := textSlot(state, model.SlotLoanPurpose); ok {
		fields["Loan_Purpose__c"] = purpose
	}

	lead, err := sfpkg.FindLeadByConversation(ctx, p.sf, state.ConversationID)
	if err != nil {
		return err
	}
	if lead != nil {
		return eris.Wrap(p.sf.UpdateOne(ctx, "Lead", lead.ID, fields), "notify: update lead")
	}

	fields["Conversation_ID__c"] = state.ConversationID
	fields["LastName"] = "Prequal " + shortID(state.ConversationID)
	fields["Company"] = "Foreign National Prequal"
	_, err = p.sf.InsertOne(ctx, "Lead", fields)
	return eris.Wrap(err, "notify: insert lead")
}

func (p *Publisher) publishNotion(ctx context.Context, state *model.ConversationState) error {
	props := notionapi.Properties{
		"Decision":        notionpkg.SelectProperty(decisionLabels[state.FinalDecision]),
		"Conversation ID": notionpkg.RichTextProperty(state.ConversationID),
		"Summary":         notionpkg.RichTextProperty(summaryLine(state)),
	}

	page, err := notionpkg.FindConversationPage(ctx, p.notion, p.cfg.DecisionDB, state.ConversationID)
	if err != nil {
		return err
	}
	if page != nil {
		_, err = p.notion.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{
			Properties: props,
		})
		return eris.Wrap(err, "notify: update page")
	}

	props["Name"] = notionpkg.TitleProperty("Prequal " + shortID(state.ConversationID))
	_, err = p.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.cfg.DecisionDB),
		},
		Properties: props,
	})
	return eris.Wrap(err, "notify: create page")
}

func sfStatus(d model.Decision) string {
	if d == model.DecisionPreApproved {
		return "Working - Contacted"
	}
	return "Closed - Not Converted"
}

// summaryLine renders a compact one-line view of the filled slots for the
// tracking page.
func summaryLine(state *model.ConversationState) string {
	var parts []string
	if price, ok := numberSlot(state, model.SlotPropertyPrice); ok {
		parts = append(parts, fmt.Sprintf("price $%.0f", price))
	}
	if down, ok := numberSlot(state, model.SlotDownPayment); ok {
		parts = append(parts, fmt.Sprintf("down $%.0f", down))
	}
	if city, ok := textSlot(state, model.SlotPropertyCity); ok {
		parts = append(parts, city)
	}
	if st, ok := textSlot(state, model.SlotPropertyState); ok {
		parts = append(parts, st)
	}
	if purpose, ok := textSlot(state, model.SlotLoanPurpose); ok {
		parts = append(parts, purpose)
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Slot accessors tolerant of JSON round-trips, where numbers come back as
// float64 regardless of how they were stored.

func numberSlot(state *model.ConversationState, name model.SlotName) (float64, bool) {
	sv, ok := state.Slots[name]
	if !ok {
		return 0, false
	}
	switch v := sv.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func textSlot(state *model.ConversationState, name model.SlotName) (string, bool) {
	sv, ok := state.Slots[name]
	if !ok {
		return "", false
	}
	s, ok := sv.Value.(string)
	return s, ok && s != ""
}
