package docstore

import (
	"encoding/json"
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE) of the document's canonical JSON form.
// encoding/json sorts map keys, so two structurally equal documents always
// hash the same regardless of how they were produced.
func Checksum(doc map[string]any) (uint32, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(raw), nil
}
