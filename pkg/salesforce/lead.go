package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead represents the Salesforce Lead record a finished conversation maps to.
type Lead struct {
	ID             string `json:"Id" salesforce:"Id"`
	LastName       string `json:"LastName" salesforce:"LastName"`
	Company        string `json:"Company" salesforce:"Company"`
	Status         string `json:"Status" salesforce:"Status"`
	ConversationID string `json:"Conversation_ID__c" salesforce:"Conversation_ID__c"`
	Decision       string `json:"Prequal_Decision__c" salesforce:"Prequal_Decision__c"`
}

var leadFields = []string{
	"Id", "LastName", "Company", "Status", "Conversation_ID__c", "Prequal_Decision__c",
}

// FindLeadByConversation queries Salesforce for a Lead tied to the given
// conversation. Returns nil if none exists yet.
func FindLeadByConversation(ctx context.Context, c Client, conversationID string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Conversation_ID__c = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(conversationID),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by conversation %s", conversationID))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// escapeSoql escapes single quotes and backslashes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
