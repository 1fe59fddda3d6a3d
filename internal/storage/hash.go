package storage

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/iancoleman/strcase"
)

// HashEncoding selects the textual form of a content digest. One encoding per
// backend; encodings are never mixed inside one store.
type HashEncoding string

// The supported digest encodings.
const (
	// EncodingHex is lowercase hexadecimal, the default for most backends.
	EncodingHex HashEncoding = "hex"
	// EncodingBase32 is lowercase unpadded base32, the object-store default.
	EncodingBase32 HashEncoding = "base32"
)

var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Digest returns the sha2-256 digest of data in the given encoding.
func Digest(data []byte, enc HashEncoding) string {
	sum := sha256.Sum256(data)

	if enc == EncodingBase32 {
		return base32Lower.EncodeToString(sum[:])
	}

	return hex.EncodeToString(sum[:])
}

// ContentPath joins a content-addressed directory with a digest.
func ContentPath(dir, hash string) string {
	return strings.TrimSuffix(dir, "/") + "/" + hash + ".json"
}

// DecodeJSON parses stored bytes as JSON. With keywordize set, map keys are
// normalized to snake_case recursively so callers can rely on one key shape
// regardless of the writer's convention.
func DecodeJSON(data []byte, keywordize bool) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	if keywordize {
		v = keywordizeValue(v)
	}

	return v, nil
}

func keywordizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			// JSON-LD keywords keep their leading '@' untouched.
			if strings.HasPrefix(k, "@") {
				out[k] = keywordizeValue(val)
				continue
			}

			out[strcase.ToSnake(k)] = keywordizeValue(val)
		}

		return out
	case []any:
		for i := range t {
			t[i] = keywordizeValue(t[i])
		}

		return t
	default:
		return v
	}
}
