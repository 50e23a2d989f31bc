package schema

// ItemType is the closed set of item variants a snapshot can hold.
type ItemType string

const (
	ItemTypeText           ItemType = "TEXT"
	ItemTypeParagraphText  ItemType = "PARAGRAPH_TEXT"
	ItemTypeMultipleChoice ItemType = "MULTIPLE_CHOICE"
	ItemTypeCheckbox       ItemType = "CHECKBOX"
	ItemTypeDropdown       ItemType = "DROPDOWN"
	ItemTypeScale          ItemType = "SCALE"
	ItemTypeDate           ItemType = "DATE"
	ItemTypeTime           ItemType = "TIME"
	ItemTypeSectionHeader  ItemType = "SECTION_HEADER"
	ItemTypePageBreak      ItemType = "PAGE_BREAK"
	ItemTypeUnknown        ItemType = "UNKNOWN"
)

var knownItemTypes = map[string]ItemType{
	string(ItemTypeText):           ItemTypeText,
	string(ItemTypeParagraphText):  ItemTypeParagraphText,
	string(ItemTypeMultipleChoice): ItemTypeMultipleChoice,
	string(ItemTypeCheckbox):       ItemTypeCheckbox,
	string(ItemTypeDropdown):       ItemTypeDropdown,
	string(ItemTypeScale):          ItemTypeScale,
	string(ItemTypeDate):           ItemTypeDate,
	string(ItemTypeTime):           ItemTypeTime,
	string(ItemTypeSectionHeader):  ItemTypeSectionHeader,
	string(ItemTypePageBreak):      ItemTypePageBreak,
	string(ItemTypeUnknown):        ItemTypeUnknown,
	// Apps Script names the dropdown item LIST.
	"LIST": ItemTypeDropdown,
}

// ParseItemType maps a remote type name to an ItemType. The second result is
// false when the name is not recognized, in which case ItemTypeUnknown is returned.
func ParseItemType(s string) (t ItemType, ok bool) {
	t, ok = knownItemTypes[s]
	if !ok {
		return ItemTypeUnknown, false
	}
	return t, true
}

// HasChoices reports whether items of this type carry an ordered list of choices.
func (t ItemType) HasChoices() bool {
	switch t {
	case ItemTypeMultipleChoice, ItemTypeCheckbox, ItemTypeDropdown:
		return true
	}
	return false
}

// IsStructural reports whether items of this type only shape the form layout.
// Required has no meaning for them.
func (t ItemType) IsStructural() bool {
	return t == ItemTypeSectionHeader || t == ItemTypePageBreak
}
