// Package schema models the structure of a form independently of any response data.
//
// A Schema is a value: Decode and Encode convert between it and the snapshot JSON
// representation, and Decode(Encode(s)) yields s for every normalized Schema.
package schema

import (
	"github.com/samber/lo"
)

// Schema is the structural definition of one form.
type Schema struct {
	Title string
	// FormID identifies the source form. It is never carried over to a restored form.
	FormID string
	// ItemCount always equals len(Items) after Decode or Normalize.
	ItemCount int
	Items     []Item
	// Metadata holds top-level fields that are not otherwise modelled, such as
	// description or publishedUrl.
	Metadata map[string]any
}

// Item is one question or layout element of a form.
type Item struct {
	Type     ItemType
	Title    string
	HelpText string
	Required bool
	// Choices is only populated for types where Type.HasChoices is true.
	Choices []string
	// Index is the position of the item within Schema.Items.
	Index int
	// Metadata holds unmodelled item fields. Values are JSON-like: maps,
	// []any, float64, string, bool or nil. For UNKNOWN items the remote type
	// name is kept under "type".
	Metadata map[string]any
}

// FormRef is an entry of a linked-forms listing.
type FormRef struct {
	SheetName string
	FormID    string
	FormURL   string
}

const (
	keyTitle     = "title"
	keyFormID    = "formId"
	keyRemoteID  = "id"
	keyItemCount = "itemCount"
	keyItems     = "items"

	keyType     = "type"
	keyHelpText = "helpText"
	keyRequired = "required"
	keyChoices  = "choices"
	keyIndex    = "index"
	keyValue    = "value"
)

var reservedSchemaKeys = map[string]bool{
	keyTitle: true, keyFormID: true, keyItemCount: true, keyItems: true,
}

// OriginalType returns the type name the remote used for an UNKNOWN item, or
// the item's own type for every other variant.
func (i Item) OriginalType() string {
	if i.Type == ItemTypeUnknown {
		if s, ok := i.Metadata[keyType].(string); ok && s != "" {
			return s
		}
	}
	return string(i.Type)
}

// Normalize returns a copy of s whose derived fields are consistent: ItemCount
// and every Index are recomputed, Required is cleared on structural items,
// Choices are dropped on items that cannot carry them, and metadata keys that
// collide with modelled fields are removed.
func Normalize(s Schema) Schema {
	out := s.Clone()
	for key := range out.Metadata {
		if reservedSchemaKeys[key] {
			delete(out.Metadata, key)
		}
	}
	if len(out.Metadata) == 0 {
		out.Metadata = nil
	}
	for i := range out.Items {
		out.Items[i] = normalizeItem(out.Items[i], i)
	}
	out.ItemCount = len(out.Items)
	return out
}

func normalizeItem(item Item, index int) Item {
	item.Index = index
	if t, known := ParseItemType(string(item.Type)); known {
		item.Type = t
	} else {
		if item.Type != "" {
			if item.Metadata == nil {
				item.Metadata = map[string]any{}
			}
			item.Metadata[keyType] = string(item.Type)
		}
		item.Type = ItemTypeUnknown
	}
	if item.Type.IsStructural() {
		item.Required = false
	}
	if !item.Type.HasChoices() || len(item.Choices) == 0 {
		item.Choices = nil
	}
	for key := range item.Metadata {
		if isReservedItemKey(item.Type, key) {
			delete(item.Metadata, key)
		}
	}
	if item.Type == ItemTypeUnknown {
		s, _ := item.Metadata[keyType].(string)
		if _, known := ParseItemType(s); known || s == "" {
			delete(item.Metadata, keyType)
		}
	}
	if len(item.Metadata) == 0 {
		item.Metadata = nil
	}
	return item
}

func isReservedItemKey(t ItemType, key string) bool {
	switch key {
	case keyTitle, keyHelpText, keyRequired, keyIndex:
		return true
	case keyType:
		// UNKNOWN items keep the remote type name here.
		return t != ItemTypeUnknown
	case keyChoices:
		return t.HasChoices()
	}
	return false
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	out := s
	out.Metadata = cloneMap(s.Metadata)
	if s.Items != nil {
		out.Items = lo.Map(s.Items, func(item Item, _ int) Item { return item.Clone() })
	}
	return out
}

// Clone returns a deep copy of i.
func (i Item) Clone() Item {
	out := i
	if i.Choices != nil {
		out.Choices = append([]string{}, i.Choices...)
	}
	out.Metadata = cloneMap(i.Metadata)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string{}, v...)
	}
	return v
}
