package storage

import (
	"encoding/json"
	"fmt"
)

// encodeBlob marshals v to JSON and compresses it when the store is configured to.
func (db *DB) encodeBlob(v any) ([]byte, bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	if !db.compress {
		return data, false, nil
	}
	return db.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), true, nil
}

func (db *DB) decodeBlob(data []byte, compressed bool, v any) error {
	if compressed {
		raw, err := db.dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress blob: %w", err)
		}
		data = raw
	}
	return json.Unmarshal(data, v)
}
