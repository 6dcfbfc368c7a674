// Package ingest cuts a municipal regulation into article-aligned chunks
// tagged with the zone and planning concepts they mention.
package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"parcel-constraints-be/pkg/utils"
)

const (
	minFragmentLength = 50
	maxArticleLength  = 2000
	maxChunkLength    = 1500
	splitOverlap      = 100
)

// Chunk is one indexed piece of regulation text.
type Chunk struct {
	Index        int      `json:"index"`
	Text         string   `json:"text"`
	Municipality string   `json:"municipality"`
	Article      string   `json:"article,omitempty"`
	Zone         string   `json:"zone,omitempty"`
	Concepts     []string `json:"concepts,omitempty"`
}

var (
	articleStartRegex = regexp.MustCompile(`(?i)Article\s+\d+`)
	articleRegex      = regexp.MustCompile(`(?i)Article\s+(\d+(?:\.\d+)?)`)
	paragraphRegex    = regexp.MustCompile(`\n\s*\n`)

	// Tried in order; the first match names the zone of the chunk.
	zonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`ZONE\s+(\d+[A-Z]?(?:/\d+)?)`),
		regexp.MustCompile(`zone\s+(\d+[A-Z]?(?:/\d+)?)`),
		regexp.MustCompile(`Zone\s+(\d+[A-Z]?(?:/\d+)?)`),
		regexp.MustCompile(`(\d+/\d+)\s+(?:Zone|zone)`),
	}

	conceptPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"indice", regexp.MustCompile(`(?i)indice.*?utilisation|coefficient.*?utilisation|densité`)},
		{"hauteur", regexp.MustCompile(`(?i)hauteur.*?max|hauteur.*?faît|hauteur.*?corniche`)},
		{"distance", regexp.MustCompile(`(?i)distance.*?limite|recul|marge`)},
		{"surface", regexp.MustCompile(`(?i)surface.*?terrain|superficie.*?min`)},
		{"stationnement", regexp.MustCompile(`(?i)place.*?parc|stationnement|parking`)},
		{"toiture", regexp.MustCompile(`(?i)toiture|toit|pente|faîte`)},
	}
)

// ChunkText splits text before every "Article N", drops fragments shorter than
// fifty characters and regroups paragraphs of long articles.
func ChunkText(municipality, text string) []Chunk {
	municipality = strings.ToLower(strings.TrimSpace(municipality))

	var pieces []string
	for _, article := range splitArticles(text) {
		if utf8.RuneCountInString(strings.TrimSpace(article)) < minFragmentLength {
			continue
		}
		if utf8.RuneCountInString(article) > maxArticleLength {
			pieces = append(pieces, splitLongArticle(article)...)
			continue
		}
		pieces = append(pieces, strings.TrimSpace(article))
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		chunk := Tag(piece)
		chunk.Index = len(chunks)
		chunk.Municipality = municipality
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Tag reads the article number, zone and concepts of a piece of text.
func Tag(text string) Chunk {
	chunk := Chunk{Text: text}

	if m := articleRegex.FindStringSubmatch(text); m != nil {
		chunk.Article = m[1]
	}
	for _, re := range zonePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			chunk.Zone = m[1]
			break
		}
	}
	for _, cp := range conceptPatterns {
		if cp.re.MatchString(text) {
			chunk.Concepts = append(chunk.Concepts, cp.name)
		}
	}

	return chunk
}

// splitArticles cuts text right before each article heading, keeping the
// heading with the text that follows it.
func splitArticles(text string) []string {
	locs := articleStartRegex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	parts := make([]string, 0, len(locs)+1)
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parts = append(parts, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	return append(parts, text[prev:])
}

// splitLongArticle regroups paragraphs into chunks of up to 1500
// characters. A single paragraph above that size is cut by SplitText.
func splitLongArticle(article string) []string {
	var out []string
	var current string

	flush := func() {
		if s := strings.TrimSpace(current); s != "" {
			out = append(out, s)
		}
		current = ""
	}

	for _, paragraph := range paragraphRegex.Split(article, -1) {
		if utf8.RuneCountInString(current+paragraph) > maxChunkLength {
			flush()
			if utf8.RuneCountInString(paragraph) > maxChunkLength {
				out = append(out, utils.SplitText(strings.TrimSpace(paragraph), maxChunkLength, splitOverlap)...)
				continue
			}
			current = paragraph
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current += "\n\n" + paragraph
		}
	}
	flush()

	return out
}
