package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
// It is used for record checksums and deterministic request identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Hex returns the ID as a fixed-width lowercase hex string.
func (id ID) Hex() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Well-known metadata keys attached to embeddings by the ingestion pipeline.
const (
	MetaType     = "type"
	MetaName     = "name"
	MetaPath     = "path"
	MetaContent  = "content"
	MetaLanguage = "language"
)

// EntityType classifies a code or documentation unit.
type EntityType int

const (
	EntityTypeOther EntityType = iota
	EntityTypeFunction
	EntityTypeClass
	EntityTypeMethod
	EntityTypeModule
	EntityTypeVariable
	EntityTypeDocument
	EntityTypeNote
)

var entityTypeNames = map[EntityType]string{
	EntityTypeOther:    "other",
	EntityTypeFunction: "function",
	EntityTypeClass:    "class",
	EntityTypeMethod:   "method",
	EntityTypeModule:   "module",
	EntityTypeVariable: "variable",
	EntityTypeDocument: "document",
	EntityTypeNote:     "note",
}

func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return "EntityType(" + strconv.Itoa(int(t)) + ")"
}

// IsCode reports whether the entity type describes source code rather than prose.
func (t EntityType) IsCode() bool {
	switch t {
	case EntityTypeFunction, EntityTypeClass, EntityTypeMethod, EntityTypeModule, EntityTypeVariable:
		return true
	}
	return false
}

// ParseEntityType maps a name to an EntityType.
// Unknown names return EntityTypeOther together with ErrInvalidEntityType.
func ParseEntityType(name string) (EntityType, error) {
	for t, n := range entityTypeNames {
		if n == name {
			return t, nil
		}
	}
	return EntityTypeOther, fmt.Errorf("%w: %q", ErrInvalidEntityType, name)
}

// Embedding is a persisted vector plus metadata for a single entity.
type Embedding struct {
	EntityID   string
	Vector     []float32
	Metadata   Metadata
	Checksum   ID        // Content checksum computed by durable stores
	InsertedAt time.Time // When the entity was first stored
	UpdatedAt  time.Time // When the entity was last written
}

// Dimension returns the vector length.
func (e *Embedding) Dimension() int {
	return len(e.Vector)
}

// Type returns the entity type recorded in metadata, or EntityTypeOther.
func (e *Embedding) Type() EntityType {
	v, ok := e.Metadata[MetaType]
	if !ok {
		return EntityTypeOther
	}
	t, _ := ParseEntityType(v.Text())
	return t
}

// Clone returns a deep copy of the embedding.
func (e *Embedding) Clone() *Embedding {
	if e == nil {
		return nil
	}
	out := *e
	out.Vector = append([]float32(nil), e.Vector...)
	out.Metadata = e.Metadata.Clone()
	return &out
}
