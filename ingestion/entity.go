// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"fmt"
	"strings"

	"github.com/poiesic/codesense/core"
)

// Entity is a unit of code or documentation to be indexed.
// It is also the JSONL line format read by the CLI.
type Entity struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Name     string        `json:"name,omitempty"`
	Path     string        `json:"path,omitempty"`
	Language string        `json:"language,omitempty"`
	Content  string        `json:"content,omitempty"`
	Metadata core.Metadata `json:"metadata,omitempty"`
}

// Validate checks the fields needed to embed and store the entity.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, core.ErrEmptyEntityID)
	}
	if _, err := core.ParseEntityType(e.Type); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntity, e.ID, err)
	}
	if strings.TrimSpace(e.text()) == "" {
		return fmt.Errorf("%w: %s: no content or name to embed", ErrInvalidEntity, e.ID)
	}
	return nil
}

// text is what gets embedded.
func (e *Entity) text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Name
}

// metadata merges the well-known fields over the free-form metadata.
func (e *Entity) metadata() core.Metadata {
	md := e.Metadata.Clone()
	if md == nil {
		md = make(core.Metadata, 5)
	}
	md[core.MetaType] = core.String(e.Type)
	set := func(key, val string) {
		if val != "" {
			md[key] = core.String(val)
		}
	}
	set(core.MetaName, e.Name)
	set(core.MetaPath, e.Path)
	set(core.MetaLanguage, e.Language)
	set(core.MetaContent, e.text())
	return md
}
