package schema

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/Jumpaku/go-formsnap/errors"
)

// JSON is the codec used for snapshots: HTML-sensitive and non-ASCII characters
// are written literally and map keys are sorted.
var JSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              false,
}.Froze()

// Decode parses snapshot bytes into a Schema. It fails only when data is not a
// JSON object.
func Decode(data []byte) (Schema, error) {
	var raw map[string]any
	if err := JSON.Unmarshal(data, &raw); err != nil {
		return Schema{}, errors.NewSnapshotCorrupt("failed to parse schema json", err)
	}
	if raw == nil {
		return Schema{}, errors.NewSnapshotCorrupt("schema json is not an object", nil)
	}
	return DecodeValue(raw), nil
}

// DecodeValue converts an untyped JSON object into a Schema. It never fails:
// unrecognized item types become ItemTypeUnknown and missing fields take their
// zero values.
func DecodeValue(raw map[string]any) Schema {
	s := Schema{Title: cast.ToString(raw[keyTitle])}

	idKey := keyFormID
	if _, ok := raw[keyFormID]; !ok {
		idKey = keyRemoteID
	}
	s.FormID = cast.ToString(raw[idKey])

	for key, value := range raw {
		if reservedSchemaKeys[key] || key == idKey {
			continue
		}
		if s.Metadata == nil {
			s.Metadata = map[string]any{}
		}
		s.Metadata[key] = cloneValue(value)
	}

	if rawItems, ok := raw[keyItems].([]any); ok {
		for index, rawItem := range rawItems {
			s.Items = append(s.Items, decodeItem(rawItem, index))
		}
	}
	s.ItemCount = len(s.Items)
	return s
}

func decodeItem(rawItem any, index int) Item {
	raw, ok := rawItem.(map[string]any)
	if !ok {
		return Item{
			Type:     ItemTypeUnknown,
			Index:    index,
			Metadata: map[string]any{keyValue: cloneValue(rawItem)},
		}
	}

	typeName := cast.ToString(raw[keyType])
	itemType, known := ParseItemType(typeName)
	item := Item{
		Type:     itemType,
		Title:    cast.ToString(raw[keyTitle]),
		HelpText: cast.ToString(raw[keyHelpText]),
		Required: cast.ToBool(raw[keyRequired]),
		Index:    index,
	}
	if itemType.IsStructural() {
		item.Required = false
	}
	if itemType.HasChoices() {
		if rawChoices, ok := raw[keyChoices].([]any); ok && len(rawChoices) > 0 {
			item.Choices = lo.Map(rawChoices, func(c any, _ int) string { return cast.ToString(c) })
		}
	}

	for key, value := range raw {
		if isReservedItemKey(itemType, key) {
			continue
		}
		if key == keyType {
			if known || typeName == "" {
				continue
			}
			value = typeName
		}
		if item.Metadata == nil {
			item.Metadata = map[string]any{}
		}
		item.Metadata[key] = cloneValue(value)
	}
	return item
}

type encodedSchema struct {
	Title     string                `json:"title"`
	FormID    string                `json:"formId"`
	ItemCount int                   `json:"itemCount"`
	Items     []jsoniter.RawMessage `json:"items"`
}

type encodedItem struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	HelpText string   `json:"helpText,omitempty"`
	Required bool     `json:"required"`
	Choices  []string `json:"choices,omitempty"`
	Index    int      `json:"index"`
}

// Encode serializes s as compact JSON. Modelled fields come first in declaration
// order, followed by metadata keys in sorted order. ItemCount and indexes are
// recomputed from Items.
func Encode(s Schema) ([]byte, error) {
	s = Normalize(s)

	items := make([]jsoniter.RawMessage, 0, len(s.Items))
	for _, item := range s.Items {
		data, err := encodeItem(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %d: %w", item.Index, err)
		}
		items = append(items, data)
	}

	data, err := JSON.Marshal(encodedSchema{
		Title:     s.Title,
		FormID:    s.FormID,
		ItemCount: len(s.Items),
		Items:     items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return appendMetadata(data, s.Metadata, nil)
}

func encodeItem(item Item) ([]byte, error) {
	data, err := JSON.Marshal(encodedItem{
		Type:     item.OriginalType(),
		Title:    item.Title,
		HelpText: item.HelpText,
		Required: item.Required,
		Choices:  item.Choices,
		Index:    item.Index,
	})
	if err != nil {
		return nil, err
	}
	var skip map[string]bool
	if item.Type == ItemTypeUnknown {
		skip = map[string]bool{keyType: true}
	}
	return appendMetadata(data, item.Metadata, skip)
}

func appendMetadata(data []byte, metadata map[string]any, skip map[string]bool) ([]byte, error) {
	keys := lo.Keys(metadata)
	slices.Sort(keys)
	for _, key := range keys {
		if skip[key] {
			continue
		}
		value, err := JSON.Marshal(metadata[key])
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata %q: %w", key, err)
		}
		if key == "" {
			// sjson has no path for the empty key.
			data, err = appendMember(data, key, value)
		} else {
			data, err = sjson.SetRawBytes(data, escapePathKey(key), value)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to set metadata %q: %w", key, err)
		}
	}
	return data, nil
}

// appendMember adds key and its encoded value as the last member of the
// encoded object obj.
func appendMember(obj []byte, key string, value []byte) ([]byte, error) {
	end := bytes.LastIndexByte(obj, '}')
	if end < 0 {
		return nil, fmt.Errorf("not an object: %s", obj)
	}
	name, err := JSON.Marshal(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, obj[:end]...)
	if !bytes.HasSuffix(bytes.TrimSpace(out), []byte("{")) {
		out = append(out, ',')
	}
	out = append(out, name...)
	out = append(out, ':')
	out = append(out, value...)
	return append(out, obj[end:]...), nil
}

var pathReplacer = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`, `:`, `\:`,
)

// escapePathKey turns an object key into a single-component sjson path.
func escapePathKey(key string) string {
	return pathReplacer.Replace(key)
}

// Indent formats encoded JSON for humans with two-space indentation, keeping key order.
func Indent(data []byte) []byte {
	out := pretty.PrettyOptions(data, &pretty.Options{
		Width:    80,
		Prefix:   "",
		Indent:   "  ",
		SortKeys: false,
	})
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out
}
