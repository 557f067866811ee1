package domain

import (
	"bytes"
	"encoding/json"
)

// Keys under which nutrient lists may appear in a stored analysis
const (
	KeyMacronutrients = "macronutrients"
	KeyMicronutrients = "micronutrients"
	KeyAnalysis       = "analysis"
	KeyNutrients      = "nutrients"
)

// MealDocument is a stored meal analysis whose nutrient lists may live at the
// root, under "analysis", or under "nutrients". Keys that are not modelled here
// (including nutrient keys holding something other than an array) are kept
// verbatim in Extra.
//
// A nil list means the key is absent; an empty non-nil list encodes as [].
type MealDocument struct {
	Macronutrients []NutrientEntry
	Micronutrients []NutrientEntry
	Analysis       *NutrientSource
	Nutrients      *NutrientSource
	Extra          map[string]json.RawMessage
}

// NutrientSource is a nested object that may carry legacy nutrient lists
type NutrientSource struct {
	Macronutrients []NutrientEntry
	Micronutrients []NutrientEntry
	Extra          map[string]json.RawMessage
}

// NutrientEntry is one element of a nutrient list, kept as raw JSON so unknown
// fields survive a rewrite.
type NutrientEntry struct {
	raw json.RawMessage
	key string
}

// NewNutrientEntry encodes a typed nutrient as an entry
func NewNutrientEntry(n Nutrient) NutrientEntry {
	raw, _ := json.Marshal(n)
	return newNutrientEntry(raw)
}

func newNutrientEntry(raw []byte) NutrientEntry {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return NutrientEntry{raw: cp, key: identityKey(cp)}
}

// identityKey derives the de-duplication key from the entry's "name" value.
// Entries without a name (or that are not objects) share the empty key.
func identityKey(raw []byte) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	name, ok := probe["name"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(name, &s); err == nil {
		return "s:" + s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, name); err != nil {
		return "j:" + string(name)
	}
	return "j:" + buf.String()
}

// IdentityKey returns the key used to decide whether two entries name the same nutrient
func (e NutrientEntry) IdentityKey() string {
	return e.key
}

// Name returns the entry's name when it is a string
func (e NutrientEntry) Name() string {
	if len(e.key) > 2 && e.key[:2] == "s:" {
		return e.key[2:]
	}
	return ""
}

// Decode converts the entry to a typed Nutrient
func (e NutrientEntry) Decode() (Nutrient, error) {
	var n Nutrient
	err := json.Unmarshal(e.raw, &n)
	return n, err
}

func (e NutrientEntry) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return []byte("null"), nil
	}
	return e.raw, nil
}

func (e *NutrientEntry) UnmarshalJSON(data []byte) error {
	*e = newNutrientEntry(data)
	return nil
}

// Len returns how many keys the source object would encode
func (s *NutrientSource) Len() int {
	if s == nil {
		return 0
	}
	n := len(s.Extra)
	if s.Macronutrients != nil {
		n++
	}
	if s.Micronutrients != nil {
		n++
	}
	return n
}

// DropNutrientLists removes both nutrient keys, whatever they hold
func (s *NutrientSource) DropNutrientLists() {
	if s == nil {
		return
	}
	s.Macronutrients = nil
	s.Micronutrients = nil
	delete(s.Extra, KeyMacronutrients)
	delete(s.Extra, KeyMicronutrients)
}

// Clone returns a deep copy of the source
func (s *NutrientSource) Clone() *NutrientSource {
	if s == nil {
		return nil
	}
	return &NutrientSource{
		Macronutrients: cloneEntries(s.Macronutrients),
		Micronutrients: cloneEntries(s.Micronutrients),
		Extra:          cloneFields(s.Extra),
	}
}

func (s NutrientSource) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Macronutrients != nil {
		out[KeyMacronutrients] = s.Macronutrients
	}
	if s.Micronutrients != nil {
		out[KeyMicronutrients] = s.Micronutrients
	}
	return json.Marshal(out)
}

func (s *NutrientSource) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = NutrientSource{Extra: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		switch k {
		case KeyMacronutrients:
			if list, ok := decodeEntries(v); ok {
				s.Macronutrients = list
				continue
			}
		case KeyMicronutrients:
			if list, ok := decodeEntries(v); ok {
				s.Micronutrients = list
				continue
			}
		}
		s.Extra[k] = v
	}
	return nil
}

// Clone returns a deep copy of the document
func (d *MealDocument) Clone() *MealDocument {
	if d == nil {
		return nil
	}
	return &MealDocument{
		Macronutrients: cloneEntries(d.Macronutrients),
		Micronutrients: cloneEntries(d.Micronutrients),
		Analysis:       d.Analysis.Clone(),
		Nutrients:      d.Nutrients.Clone(),
		Extra:          cloneFields(d.Extra),
	}
}

func (d MealDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+4)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.Macronutrients != nil {
		out[KeyMacronutrients] = d.Macronutrients
	}
	if d.Micronutrients != nil {
		out[KeyMicronutrients] = d.Micronutrients
	}
	if d.Analysis != nil {
		out[KeyAnalysis] = d.Analysis
	}
	if d.Nutrients != nil {
		out[KeyNutrients] = d.Nutrients
	}
	return json.Marshal(out)
}

func (d *MealDocument) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = MealDocument{Extra: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		switch k {
		case KeyMacronutrients:
			if list, ok := decodeEntries(v); ok {
				d.Macronutrients = list
				continue
			}
		case KeyMicronutrients:
			if list, ok := decodeEntries(v); ok {
				d.Micronutrients = list
				continue
			}
		case KeyAnalysis:
			if src, ok := decodeSource(v); ok {
				d.Analysis = src
				continue
			}
		case KeyNutrients:
			if src, ok := decodeSource(v); ok {
				d.Nutrients = src
				continue
			}
		}
		d.Extra[k] = v
	}
	return nil
}

// decodeEntries reports ok only for a JSON array
func decodeEntries(raw json.RawMessage) ([]NutrientEntry, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	entries := make([]NutrientEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, newNutrientEntry(item))
	}
	return entries, true
}

// decodeSource reports ok only for a JSON object
func decodeSource(raw json.RawMessage) (*NutrientSource, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	var src NutrientSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, false
	}
	return &src, true
}

func cloneEntries(entries []NutrientEntry) []NutrientEntry {
	if entries == nil {
		return nil
	}
	out := make([]NutrientEntry, len(entries))
	for i, e := range entries {
		raw := make(json.RawMessage, len(e.raw))
		copy(raw, e.raw)
		out[i] = NutrientEntry{raw: raw, key: e.key}
	}
	return out
}

func cloneFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
