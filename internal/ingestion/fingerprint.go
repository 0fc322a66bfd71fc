package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint contract: each field is NFC-normalized, lowercased, and
// whitespace-collapsed; content additionally has markup stripped so the
// same article arriving as HTML and as plain text hashes identically.
// Fields are joined with NUL bytes and hashed with SHA-256. The exact
// byte layout is an internal contract of this store, not a compatibility
// guarantee with any other system.

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ToLower(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripMarkup extracts visible text from HTML-ish content. Plain text
// passes through unchanged apart from entity decoding.
func stripMarkup(content string) string {
	if !strings.ContainsRune(content, '<') {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Fingerprint computes the stable dedup hash over (title, source name,
// content).
func Fingerprint(title, sourceName, content string) string {
	parts := []string{
		normalizeText(title),
		normalizeText(sourceName),
		normalizeText(stripMarkup(content)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
