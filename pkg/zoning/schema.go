package zoning

import "strings"

// Unresolved is the wire value of a slot that no evidence could fill.
const Unresolved = "-"

type Source string

const (
	SourceUnresolved     Source = "unresolved"
	SourceZoneLabel      Source = "zone-label"
	SourceRegulationText Source = "regulation-text"
	SourceLegalExtract   Source = "legal-extract"
)

// Slot is one schema field together with its provenance. Evidence quotes
// the regulation context a scanned value was read from.
type Slot struct {
	Value      string  `json:"value"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

func UnresolvedSlot() Slot {
	return Slot{Value: Unresolved, Source: SourceUnresolved}
}

func (s Slot) Resolved() bool {
	return s.Value != "" && s.Value != Unresolved
}

// SlotName is the flattened key of a schema slot.
type SlotName string

const (
	SlotIndiceUtilisation SlotName = "indice_utilisation"
	SlotDistanceMinimale  SlotName = "distance_minimale"
	SlotHauteurMaximale   SlotName = "hauteur_maximale"
	SlotSurfaceMinimale   SlotName = "surface_minimale"
	SlotToiture           SlotName = "toiture"
	SlotPlacesParc        SlotName = "places_parc"
	SlotRemarques         SlotName = "remarques"
)

// ConstraintSlots lists the constraint-bearing slots in resolution order.
// Remarques is derived from general passages and is not part of it.
var ConstraintSlots = []SlotName{
	SlotIndiceUtilisation,
	SlotDistanceMinimale,
	SlotHauteurMaximale,
	SlotSurfaceMinimale,
	SlotToiture,
	SlotPlacesParc,
}

// ConstraintOf returns the constraint type whose extraction rules fill a slot.
func (n SlotName) ConstraintOf() ConstraintType {
	switch n {
	case SlotIndiceUtilisation:
		return ConstraintIndice
	case SlotDistanceMinimale:
		return ConstraintDistance
	case SlotHauteurMaximale:
		return ConstraintHauteur
	case SlotSurfaceMinimale:
		return ConstraintSurface
	case SlotToiture:
		return ConstraintToiture
	case SlotPlacesParc:
		return ConstraintStationnement
	}
	return ConstraintGeneral
}

// SlotFor is the inverse of ConstraintOf.
func SlotFor(ct ConstraintType) (SlotName, bool) {
	for _, name := range ConstraintSlots {
		if name.ConstraintOf() == ct {
			return name, true
		}
	}
	return "", false
}

// Schema is the fixed-shape constraint record returned for one parcel.
type Schema struct {
	Slots            map[SlotName]Slot `json:"slots"`
	PassagesGeneraux []string          `json:"passages_generaux"`
}

func NewSchema() *Schema {
	s := &Schema{
		Slots:            make(map[SlotName]Slot, len(ConstraintSlots)+1),
		PassagesGeneraux: []string{},
	}
	for _, name := range ConstraintSlots {
		s.Slots[name] = UnresolvedSlot()
	}
	s.Slots[SlotRemarques] = UnresolvedSlot()
	return s
}

func (s *Schema) Get(name SlotName) Slot {
	if slot, ok := s.Slots[name]; ok {
		return slot
	}
	return UnresolvedSlot()
}

func (s *Schema) Set(name SlotName, slot Slot) {
	s.Slots[name] = slot
}

// ResolvedCount counts constraint slots holding a value.
func (s *Schema) ResolvedCount() int {
	n := 0
	for _, name := range ConstraintSlots {
		if s.Get(name).Resolved() {
			n++
		}
	}
	return n
}

// Flatten renders the schema in its wire form: one string per slot with
// unresolved slots as "-", plus the general passages list.
func (s *Schema) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(ConstraintSlots)+2)
	for _, name := range ConstraintSlots {
		out[string(name)] = valueOrDash(s.Get(name).Value)
	}
	out[string(SlotRemarques)] = valueOrDash(s.Get(SlotRemarques).Value)

	passages := s.PassagesGeneraux
	if passages == nil {
		passages = []string{}
	}
	out["passages_generaux"] = passages
	return out
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unresolved
	}
	return v
}
