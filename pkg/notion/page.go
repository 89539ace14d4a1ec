package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// FindConversationPage looks up the tracking page for a conversation in the
// given database, keyed by the "Conversation ID" rich-text property. Returns
// nil if no page exists yet.
func FindConversationPage(ctx context.Context, c Client, dbID, conversationID string) (*notionapi.Page, error) {
	page, err := c.FindPageByRichText(ctx, dbID, "Conversation ID", conversationID)
	if err != nil {
		return nil, eris.Wrap(err, "notion: find conversation page")
	}
	return page, nil
}

// TitleProperty builds a single-run title property.
func TitleProperty(text string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

// RichTextProperty builds a single-run rich-text property.
func RichTextProperty(text string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

// SelectProperty builds a select property with the given option name.
func SelectProperty(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Select: notionapi.Option{Name: name},
	}
}
