package r2rml

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/piprate/json-gold/ld"
)

// ParseJSONLD converts a JSON-LD document to quads by round-tripping through
// the processor's N-Quads serialization, so JSON-LD and Turtle mapping
// documents meet in one representation before the builder runs.
func ParseJSONLD(data []byte) ([]quad.Quad, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "parsing JSON-LD mapping document")
	}

	proc := ld.NewJsonLdProcessor()

	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"

	rdf, err := proc.ToRDF(doc, opts)
	if err != nil {
		return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
			"converting JSON-LD mapping to RDF: %v", err)
	}

	serialized, ok := rdf.(string)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "JSON-LD conversion produced %T, want string", rdf)
	}

	reader := nquads.NewReader(strings.NewReader(serialized), false)

	var quads []quad.Quad

	for {
		q, err := reader.ReadQuad()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "reading converted mapping quads")
		}

		quads = append(quads, q)
	}

	return quads, nil
}

// ParseJSONLDMappings parses a JSON-LD mapping document into a mapping set.
func ParseJSONLDMappings(data []byte) (*MappingSet, error) {
	quads, err := ParseJSONLD(data)
	if err != nil {
		return nil, err
	}

	return FromQuads(quads)
}

// ParseMappings sniffs the document format and dispatches: documents starting
// with '{' or '[' parse as JSON-LD, everything else as Turtle. Both paths
// MUST produce identical mapping records for equivalent documents.
func ParseMappings(data []byte) (*MappingSet, error) {
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ParseJSONLDMappings(data)
	}

	return ParseTurtleMappings(data)
}
