package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Datacenter buildout accelerates", "Reuters", "Full article body.")
	b := Fingerprint("Datacenter buildout accelerates", "Reuters", "Full article body.")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintNormalization(t *testing.T) {
	base := Fingerprint("Datacenter buildout", "Reuters", "Grid constraints bind.")

	assert.Equal(t, base, Fingerprint("DATACENTER Buildout", "reuters", "Grid constraints bind."))
	assert.Equal(t, base, Fingerprint("  Datacenter\t\nbuildout ", "Reuters", "Grid   constraints\nbind."))
}

func TestFingerprintStripsMarkup(t *testing.T) {
	plain := Fingerprint("Title", "Source", "Grid constraints bind.")
	html := Fingerprint("Title", "Source",
		"<html><body><script>track()</script><p>Grid constraints bind.</p></body></html>")
	assert.Equal(t, plain, html)
}

func TestFingerprintDistinguishesFields(t *testing.T) {
	base := Fingerprint("Title", "Source", "Content")

	assert.NotEqual(t, base, Fingerprint("Title2", "Source", "Content"))
	assert.NotEqual(t, base, Fingerprint("Title", "Source2", "Content"))
	assert.NotEqual(t, base, Fingerprint("Title", "Source", "Content2"))

	// Field boundaries matter: shifting text between fields changes
	// the hash.
	assert.NotEqual(t, Fingerprint("ab", "c", "d"), Fingerprint("a", "bc", "d"))
}
