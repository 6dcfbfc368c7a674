// Package rdppf fetches and models the public-law restriction extract
// (RDPPF) published for a cadastral parcel.
package rdppf

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type Extract struct {
	Extract ExtractBody `json:"Extract"`
}

type ExtractBody struct {
	RealEstate     RealEstate `json:"RealEstate"`
	ConcernedTheme []Theme    `json:"ConcernedTheme"`
}

type RealEstate struct {
	Number                     string          `json:"Number,omitempty"`
	Municipality               string          `json:"Municipality,omitempty"`
	Area                       Number          `json:"Area,omitempty"`
	Description                []LocalisedText `json:"Description,omitempty"`
	RestrictionOnLandownership []Restriction   `json:"RestrictionOnLandownership"`
}

type Restriction struct {
	Theme         *Theme          `json:"Theme,omitempty"`
	LegendText    []LocalisedText `json:"LegendText"`
	PartInPercent Number          `json:"PartInPercent,omitempty"`
	Part          Number          `json:"Part,omitempty"`
}

type Theme struct {
	Code string          `json:"Code"`
	Text []LocalisedText `json:"Text"`
}

type LocalisedText struct {
	Language string `json:"Language"`
	Text     string `json:"Text"`
}

// Number accepts a JSON number, a numeric string ("100", "100%") or null.
// Quoted records that the value arrived as a JSON string.
type Number struct {
	Raw    string
	Value  float64
	Valid  bool
	Quoted bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = Number{}
		return nil
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	*n = Number{Raw: raw, Quoted: data[0] == '"'}
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if f, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", "."), 64); err == nil {
		n.Value = f
		n.Valid = true
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.Valid {
		return json.Marshal(n.Value)
	}
	if n.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(n.Raw)
}

// IsSet reports whether the field was present with a non-null value.
func (n Number) IsSet() bool {
	return n.Raw != ""
}

// CoversWholeParcel reports whether the restriction applies to 100% of the
// parcel. The percentage field wins over the plain part field. Textual
// values like "env. 100 %" count when they mention 100; numbers must equal it.
func (r Restriction) CoversWholeParcel() bool {
	part := r.PartInPercent
	if !part.IsSet() {
		part = r.Part
	}
	if part.Valid && part.Value == 100 {
		return true
	}
	return part.Quoted && strings.Contains(part.Raw, "100")
}

// French returns the trimmed French texts of a localised list.
func French(texts []LocalisedText) []string {
	var out []string
	for _, t := range texts {
		if !strings.EqualFold(t.Language, "fr") {
			continue
		}
		if s := strings.TrimSpace(t.Text); s != "" {
			out = append(out, s)
		}
	}
	return out
}
