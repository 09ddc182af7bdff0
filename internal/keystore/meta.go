// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/toeirei/keyrot/internal/model"
)

// Metadata is the content of a ".meta" companion.
type Metadata struct {
	CreatedAt   time.Time       `json:"created_at"`
	Algorithm   model.Algorithm `json:"algorithm"`
	Comment     string          `json:"comment,omitempty"`
	Bits        int             `json:"bits,omitempty"`
	RotatedFrom string          `json:"rotated_from,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
}

// WriteMetadata writes m next to the private key at keyPath.
func WriteMetadata(keyPath string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyPath+model.MetaSuffix, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads the ".meta" companion of the private key at keyPath.
func ReadMetadata(keyPath string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(keyPath + model.MetaSuffix)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse metadata %s: %w", keyPath+model.MetaSuffix, err)
	}
	return m, nil
}
