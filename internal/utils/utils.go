// Package utils provides helpers for filename handling and id generation.
//
// Functions:
//   - SanitizeFilename: Returns a filename safe to use as an object storage key.
//   - GenerateUUID: Returns a new UUID string.
//   - AllowedFile: Reports whether a filename carries an allowed extension.
//   - ContractFileName: Builds "{number}-{counterparty}-{name}.pdf".
//
// Used throughout the backend for safe file handling and unique IDs.
package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]`)

func SanitizeFilename(name string) string {
	base := filepath.Base(name)
	safe := unsafeChars.ReplaceAllString(base, "_")
	if r := []rune(safe); len(r) > 100 {
		safe = string(r[:100])
	}
	return safe
}

func GenerateUUID() string {
	return uuid.New().String()
}

// AllowedFile matches the extension case-insensitively; the content is never inspected.
func AllowedFile(filename string, allowed ...string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}

var segmentReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// ContractFileName is deterministic: the same metadata always yields the same name.
func ContractFileName(contractNumber, counterparty, contractName string) string {
	return segmentReplacer.Replace(contractNumber) + "-" +
		segmentReplacer.Replace(counterparty) + "-" +
		segmentReplacer.Replace(contractName) + ".pdf"
}
