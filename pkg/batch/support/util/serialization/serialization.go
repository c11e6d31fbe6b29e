// Package serialization converts documents to and from their stored JSON form.
package serialization

import (
	"encoding/json"
	"strings"

	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const module = "serialization"

// KeyDotReplacement stands in for '.' in document map keys.
const KeyDotReplacement = "£"

// MarshalDocument serializes a document for storage.
func MarshalDocument(doc interface{}) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		logger.Errorf("Failed to serialize document: %v", err)
		return "", exception.NewBatchError(module, "Failed to serialize document", err, false, false)
	}
	return string(data), nil
}

// UnmarshalDocument deserializes a stored document into target.
func UnmarshalDocument(data string, target interface{}) error {
	if data == "" || data == "null" {
		return exception.NewBatchErrorf(module, "document is empty")
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		logger.Errorf("Failed to deserialize document: %v", err)
		return exception.NewBatchError(module, "Failed to deserialize document", err, false, false)
	}
	return nil
}

// EscapeKeys returns a copy of m whose keys have every '.' replaced by KeyDotReplacement.
func EscapeKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	escaped := make(map[string]string, len(m))
	for k, v := range m {
		escaped[strings.ReplaceAll(k, ".", KeyDotReplacement)] = v
	}
	return escaped
}

// UnescapeKeys reverts EscapeKeys.
func UnescapeKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	unescaped := make(map[string]string, len(m))
	for k, v := range m {
		unescaped[strings.ReplaceAll(k, KeyDotReplacement, ".")] = v
	}
	return unescaped
}
