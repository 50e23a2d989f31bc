package form

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"google.golang.org/api/forms/v1"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/schema"
)

const (
	choiceTypeRadio    = "RADIO"
	choiceTypeCheckbox = "CHECKBOX"
	choiceTypeDropDown = "DROP_DOWN"

	// PlaceholderOption fills a choice question until its options are set.
	PlaceholderOption = "Option 1"

	metadataLowerBound = "lowerBound"
	metadataUpperBound = "upperBound"
	metadataLeftLabel  = "leftLabel"
	metadataRightLabel = "rightLabel"

	defaultScaleLow  = 1
	defaultScaleHigh = 5

	// The Forms API accepts a scale from 0 or 1 up to 2 through 10.
	minScaleLow  = 0
	maxScaleLow  = 1
	minScaleHigh = 2
	maxScaleHigh = 10
)

// Item is a partial Forms API item. Setters record which fields are written so
// that the same value serves CreateItem and UpdateItem requests.
type Item struct {
	title         string
	description   string
	questionItem  *forms.QuestionItem
	textItem      *forms.TextItem
	pageBreakItem *forms.PageBreakItem
	choiceOptions []string

	updateTitle         bool
	updateDescription   bool
	updateQuestionItem  bool
	updateTextItem      bool
	updatePageBreakItem bool
	updateChoiceOptions bool
}

func (i *Item) SetTitle(title string) *Item {
	i.updateTitle = true
	i.title = title
	return i
}

func (i *Item) SetDescription(description string) *Item {
	i.updateDescription = true
	i.description = description
	return i
}

func (i *Item) SetQuestionItem(q *forms.QuestionItem) *Item {
	i.updateQuestionItem = true
	i.questionItem = q
	return i
}

func (i *Item) SetTextItem(t *forms.TextItem) *Item {
	i.updateTextItem = true
	i.textItem = t
	return i
}

func (i *Item) SetPageBreakItem(pb *forms.PageBreakItem) *Item {
	i.updatePageBreakItem = true
	i.pageBreakItem = pb
	return i
}

// SetChoiceOptions replaces only the options of an existing choice question.
func (i *Item) SetChoiceOptions(choices []string) *Item {
	i.updateChoiceOptions = true
	i.choiceOptions = append([]string{}, choices...)
	return i
}

// UpdateMask returns the comma-separated field paths that were set.
func (i Item) UpdateMask() string {
	var parts []string
	if i.updateTitle {
		parts = append(parts, "title")
	}
	if i.updateDescription {
		parts = append(parts, "description")
	}
	if i.updateQuestionItem {
		parts = append(parts, "questionItem")
	} else if i.updateChoiceOptions {
		parts = append(parts, "questionItem.question.choiceQuestion.options")
	}
	if i.updateTextItem {
		parts = append(parts, "textItem")
	}
	if i.updatePageBreakItem {
		parts = append(parts, "pageBreakItem")
	}
	return strings.Join(parts, ",")
}

// APIItem returns the Forms API representation of the set fields.
func (i Item) APIItem() *forms.Item {
	item := &forms.Item{
		Title:         i.title,
		Description:   i.description,
		QuestionItem:  i.questionItem,
		TextItem:      i.textItem,
		PageBreakItem: i.pageBreakItem,
	}
	if i.updateChoiceOptions && !i.updateQuestionItem {
		item.QuestionItem = &forms.QuestionItem{
			Question: &forms.Question{
				ChoiceQuestion: &forms.ChoiceQuestion{Options: options(i.choiceOptions)},
			},
		}
	}
	return item
}

// NewItem converts a schema item into the item added by CreateItem. Choice
// questions carry a placeholder option; their stored choices are applied
// afterwards with SetChoiceOptions.
func NewItem(item schema.Item) (*Item, error) {
	i := (&Item{}).SetTitle(item.Title)
	if item.HelpText != "" {
		i.SetDescription(item.HelpText)
	}

	switch item.Type {
	case schema.ItemTypeSectionHeader:
		return i.SetTextItem(&forms.TextItem{}), nil
	case schema.ItemTypePageBreak:
		return i.SetPageBreakItem(&forms.PageBreakItem{}), nil
	}

	q := &forms.Question{Required: item.Required}
	switch item.Type {
	case schema.ItemTypeText:
		q.TextQuestion = &forms.TextQuestion{}
	case schema.ItemTypeParagraphText:
		q.TextQuestion = &forms.TextQuestion{Paragraph: true}
	case schema.ItemTypeMultipleChoice:
		q.ChoiceQuestion = &forms.ChoiceQuestion{Type: choiceTypeRadio, Options: options([]string{PlaceholderOption})}
	case schema.ItemTypeCheckbox:
		q.ChoiceQuestion = &forms.ChoiceQuestion{Type: choiceTypeCheckbox, Options: options([]string{PlaceholderOption})}
	case schema.ItemTypeDropdown:
		q.ChoiceQuestion = &forms.ChoiceQuestion{Type: choiceTypeDropDown, Options: options([]string{PlaceholderOption})}
	case schema.ItemTypeScale:
		q.ScaleQuestion = scaleQuestion(item.Metadata)
	case schema.ItemTypeDate:
		q.DateQuestion = &forms.DateQuestion{}
	case schema.ItemTypeTime:
		q.TimeQuestion = &forms.TimeQuestion{}
	default:
		return nil, fmt.Errorf("item type %s cannot be created: %w", item.OriginalType(), errors.ErrUnsupported)
	}
	return i.SetQuestionItem(&forms.QuestionItem{Question: q}), nil
}

func scaleQuestion(metadata map[string]any) *forms.ScaleQuestion {
	low, high, _ := ScaleBounds(metadata)
	return &forms.ScaleQuestion{
		Low:             low,
		High:            high,
		LowLabel:        cast.ToString(metadata[metadataLeftLabel]),
		HighLabel:       cast.ToString(metadata[metadataRightLabel]),
		ForceSendFields: []string{"Low"},
	}
}

// ScaleBounds returns the bounds of a scale item, limited to the range the
// Forms API accepts. Missing or unreadable bounds take the defaults 1 and 5.
// clamped reports whether a bound given in metadata was changed.
func ScaleBounds(metadata map[string]any) (low, high int64, clamped bool) {
	low, err := cast.ToInt64E(metadata[metadataLowerBound])
	if err != nil || metadata[metadataLowerBound] == nil {
		low = defaultScaleLow
	}
	high, err = cast.ToInt64E(metadata[metadataUpperBound])
	if err != nil || metadata[metadataUpperBound] == nil {
		high = defaultScaleHigh
	}
	l := min(max(low, minScaleLow), maxScaleLow)
	h := min(max(high, minScaleHigh), maxScaleHigh)
	return l, h, l != low || h != high
}

func options(values []string) []*forms.Option {
	opts := make([]*forms.Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, &forms.Option{Value: v})
	}
	return opts
}

func location(index int) *forms.Location {
	return &forms.Location{Index: int64(index), ForceSendFields: []string{"Index"}}
}
