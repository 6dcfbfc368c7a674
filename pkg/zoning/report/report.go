// Package report renders a filled constraint schema for people: the one
// line summary and the plain text feasibility study.
package report

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"parcel-constraints-be/pkg/zoning"
)

// UnknownZone stands in for the zone label when the extract has none.
const UnknownZone = "inconnue"

const (
	maxReportPassages = 5
	passageMaxLength  = 300
	titleWords        = 3
	titleMaxLength    = 60
	separatorLong     = "=================================================="
	separatorShort    = "------------------------------"
	separatorMedium   = "----------------------------------------"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var articleTitleRegex = regexp.MustCompile(`(?i)Article\s+(\d+(?:\.\d+)?)`)

// Summary is the one line outcome of an extraction.
func Summary(schema *zoning.Schema, zoneLabel string) string {
	if strings.TrimSpace(zoneLabel) == "" {
		zoneLabel = UnknownZone
	}
	if n := schema.ResolvedCount(); n > 0 {
		return fmt.Sprintf("%d contrainte(s) extraite(s) du règlement communal pour la zone %s", n, zoneLabel)
	}
	return fmt.Sprintf("Aucune contrainte spécifique trouvée dans le règlement pour la zone %s", zoneLabel)
}

// MeanConfidence averages the confidence of the resolved constraint slots.
func MeanConfidence(schema *zoning.Schema) float64 {
	var sum float64
	var n int
	for _, name := range zoning.ConstraintSlots {
		if slot := schema.Get(name); slot.Resolved() {
			sum += slot.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

// Input gathers what the text report shows about one parcel.
type Input struct {
	Municipality string
	Parcel       string
	Surface      string
	ZoneLabel    string
	Candidates   []zoning.ConstraintCandidate
	Schema       *zoning.Schema
}

type Builder struct {
	now   func() time.Time
	place string
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now, place: "Sion"}
}

// WithClock fixes the date printed at the bottom of the report.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) Build(in Input) string {
	schema := in.Schema
	if schema == nil {
		schema = zoning.NewSchema()
	}
	flat := schema.Flatten()
	zone := in.ZoneLabel
	if strings.TrimSpace(zone) == "" {
		zone = zoning.Unresolved
	}
	surface := in.Surface
	if strings.TrimSpace(surface) == "" {
		surface = zoning.Unresolved
	}

	var sb strings.Builder
	sb.WriteString("ETUDE DE FAISABILITE\n")
	fmt.Fprintf(&sb, "Parcelle à %s\n", strings.ToUpper(in.Municipality))
	sb.WriteString(separatorLong + "\n")
	fmt.Fprintf(&sb, "Commune : %s\n", cases.Title(language.French).String(in.Municipality))
	if in.Parcel != "" {
		fmt.Fprintf(&sb, "Parcelle : %s\n", in.Parcel)
	}
	fmt.Fprintf(&sb, "Surface : %s m2\n", surface)
	fmt.Fprintf(&sb, "Zone : %s\n\n", zone)

	sb.WriteString("SYNTHESE RAPIDE\n")
	sb.WriteString(separatorShort + "\n")
	fmt.Fprintf(&sb, "- Contraintes RDPPF : %s\n\n", candidateSummary(in.Candidates))

	sb.WriteString("REGLEMENT COMMUNAL\n")
	sb.WriteString(separatorMedium + "\n")
	fmt.Fprintf(&sb, "Indice d'utilisation : %s\n", flat[string(zoning.SlotIndiceUtilisation)])
	fmt.Fprintf(&sb, "Distance minimale : %s\n", flat[string(zoning.SlotDistanceMinimale)])
	fmt.Fprintf(&sb, "Hauteur maximale : %s\n", flat[string(zoning.SlotHauteurMaximale)])
	fmt.Fprintf(&sb, "Surface minimale : %s\n", flat[string(zoning.SlotSurfaceMinimale)])
	fmt.Fprintf(&sb, "Toiture : %s\n", flat[string(zoning.SlotToiture)])
	fmt.Fprintf(&sb, "Remarques : %s\n\n", flat[string(zoning.SlotRemarques)])

	sb.WriteString("Places de parc :\n")
	fmt.Fprintf(&sb, "%s\n\n", flat[string(zoning.SlotPlacesParc)])

	sb.WriteString("Remarques générales :\n")
	if len(schema.PassagesGeneraux) == 0 {
		sb.WriteString(zoning.Unresolved + "\n")
	}
	for i, passage := range schema.PassagesGeneraux {
		if i >= maxReportPassages {
			break
		}
		fmt.Fprintf(&sb, "- %s\n", passageTitle(passage, i+1))
		fmt.Fprintf(&sb, "%s\n", shorten(strings.TrimSpace(passage), passageMaxLength))
	}

	fmt.Fprintf(&sb, "\nFait à %s, le %s\n", b.place, FrenchDate(b.now()))

	return sb.String()
}

// candidateSummary lists the candidate texts, leaving out the zone itself.
func candidateSummary(candidates []zoning.ConstraintCandidate) string {
	var texts []string
	for _, c := range candidates {
		if c.Category == zoning.CategoryZone {
			continue
		}
		texts = append(texts, c.Text)
	}
	if len(texts) == 0 {
		return "Aucune contrainte particulière"
	}
	return strings.Join(texts, ", ")
}

// passageTitle names a passage by its article number, else by its first
// three words cut to titleMaxLength runes.
func passageTitle(passage string, index int) string {
	firstLine := strings.TrimSpace(strings.SplitN(strings.TrimSpace(passage), "\n", 2)[0])
	if m := articleTitleRegex.FindStringSubmatch(firstLine); m != nil {
		return "Article " + m[1]
	}
	words := strings.Fields(firstLine)
	if len(words) == 0 {
		return fmt.Sprintf("Règle %d", index)
	}
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return shorten(strings.Join(words, " "), titleMaxLength)
}

func shorten(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

// FrenchDate formats t as "02 janvier 2006".
func FrenchDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}
