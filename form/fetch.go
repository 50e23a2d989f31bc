package form

import (
	"context"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"google.golang.org/api/forms/v1"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/schema"
)

const (
	metadataItemID       = "id"
	metadataType         = "type"
	metadataDescription  = "description"
	metadataPublishedURL = "publishedUrl"
)

// FetchSchema reads the structure of formID.
func (c *Client) FetchSchema(ctx context.Context, formID string) (schema.Schema, error) {
	f, err := c.service.Forms.Get(formID).Context(ctx).Do()
	if err != nil {
		if errors.IsGoogleAPINotFound(err) {
			return schema.Schema{}, &errors.RemoteSchemaError{Message: "form not found: " + formID}
		}
		return schema.Schema{}, errors.NewGoogleAPIError("failed to get form", err)
	}
	s := SchemaFromForm(f)
	c.log.Infon("form structure fetched",
		logger.NewStringField("formId", formID),
		logger.NewIntField("items", int64(s.ItemCount)),
	)
	return s, nil
}

// ListLinkedForms is not available through the Forms API. Linked forms are a
// property of the spreadsheet script.
func (c *Client) ListLinkedForms(context.Context) ([]schema.FormRef, error) {
	return nil, errors.ErrUnsupported
}

// SchemaFromForm maps a Forms API form onto a schema.
func SchemaFromForm(f *forms.Form) schema.Schema {
	s := schema.Schema{FormID: f.FormId, Metadata: map[string]any{}}
	if f.Info != nil {
		s.Title = f.Info.Title
		if f.Info.Description != "" {
			s.Metadata[metadataDescription] = f.Info.Description
		}
	}
	if f.ResponderUri != "" {
		s.Metadata[metadataPublishedURL] = f.ResponderUri
	}
	for _, apiItem := range f.Items {
		if apiItem == nil {
			continue
		}
		s.Items = append(s.Items, itemFromAPI(apiItem))
	}
	return schema.Normalize(s)
}

func itemFromAPI(apiItem *forms.Item) schema.Item {
	item := schema.Item{
		Title:    apiItem.Title,
		HelpText: apiItem.Description,
		Metadata: map[string]any{},
	}
	if apiItem.ItemId != "" {
		item.Metadata[metadataItemID] = apiItem.ItemId
	}

	unknown := func(name string) schema.Item {
		item.Type = schema.ItemTypeUnknown
		item.Metadata[metadataType] = name
		return item
	}

	switch {
	case apiItem.TextItem != nil:
		item.Type = schema.ItemTypeSectionHeader
		return item
	case apiItem.PageBreakItem != nil:
		item.Type = schema.ItemTypePageBreak
		return item
	case apiItem.ImageItem != nil:
		return unknown("IMAGE")
	case apiItem.VideoItem != nil:
		return unknown("VIDEO")
	case apiItem.QuestionGroupItem != nil:
		if apiItem.QuestionGroupItem.Grid != nil {
			if apiItem.QuestionGroupItem.Grid.Columns != nil && apiItem.QuestionGroupItem.Grid.Columns.Type == choiceTypeCheckbox {
				return unknown("CHECKBOX_GRID")
			}
			return unknown("GRID")
		}
		return unknown("QUESTION_GROUP")
	case apiItem.QuestionItem == nil || apiItem.QuestionItem.Question == nil:
		return unknown("UNSPECIFIED")
	}

	q := apiItem.QuestionItem.Question
	item.Required = q.Required
	switch {
	case q.TextQuestion != nil:
		item.Type = schema.ItemTypeText
		if q.TextQuestion.Paragraph {
			item.Type = schema.ItemTypeParagraphText
		}
	case q.ChoiceQuestion != nil:
		switch q.ChoiceQuestion.Type {
		case choiceTypeRadio:
			item.Type = schema.ItemTypeMultipleChoice
		case choiceTypeCheckbox:
			item.Type = schema.ItemTypeCheckbox
		case choiceTypeDropDown:
			item.Type = schema.ItemTypeDropdown
		default:
			return unknown("CHOICE_" + q.ChoiceQuestion.Type)
		}
		for _, o := range q.ChoiceQuestion.Options {
			if o == nil || o.IsOther {
				continue
			}
			item.Choices = append(item.Choices, o.Value)
		}
	case q.ScaleQuestion != nil:
		item.Type = schema.ItemTypeScale
		item.Metadata[metadataLowerBound] = float64(q.ScaleQuestion.Low)
		item.Metadata[metadataUpperBound] = float64(q.ScaleQuestion.High)
		if q.ScaleQuestion.LowLabel != "" {
			item.Metadata[metadataLeftLabel] = q.ScaleQuestion.LowLabel
		}
		if q.ScaleQuestion.HighLabel != "" {
			item.Metadata[metadataRightLabel] = q.ScaleQuestion.HighLabel
		}
	case q.DateQuestion != nil:
		item.Type = schema.ItemTypeDate
	case q.TimeQuestion != nil:
		item.Type = schema.ItemTypeTime
	case q.FileUploadQuestion != nil:
		return unknown("FILE_UPLOAD")
	default:
		return unknown("QUESTION")
	}
	return item
}
