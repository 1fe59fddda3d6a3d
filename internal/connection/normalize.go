package connection

import (
	"encoding/json"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/piprate/json-gold/ld"
)

// Normalizer produces the canonical byte form of a commit or context document
// before hashing. The same document must always normalize to the same bytes.
type Normalizer func(doc any) ([]byte, error)

// CanonicalJSON normalizes by deterministic JSON marshaling: object keys are
// emitted in sorted order, so structurally equal documents share an address.
// It is the default commit normalizer; the stored bytes parse back to the
// caller's document.
func CanonicalJSON(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "canonicalizing document")
	}

	return data, nil
}

// URDNA2015 normalizes through JSON-LD canonicalization: the document is
// normalized to canonical N-Quads, so graph-equal documents share an address
// regardless of their JSON shape. Commits written with it are stored as
// N-Quads, not JSON.
func URDNA2015(doc any) ([]byte, error) {
	proc := ld.NewJsonLdProcessor()

	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"
	opts.Algorithm = ld.AlgorithmURDNA2015

	normalized, err := proc.Normalize(doc, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "normalizing JSON-LD document")
	}

	quads, ok := normalized.(string)
	if !ok {
		return nil, apperr.New(apperr.KindIOError, "normalization produced %T, want string", normalized)
	}

	return []byte(quads), nil
}
