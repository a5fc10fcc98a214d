package db

import (
	"errors"
	"fmt"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the FT.CREATE vector index algorithm.
type VectorAlgorithm string

const (
	// VectorHNSW is the approximate graph index.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat is exact brute force, good for small corpora.
	VectorFlat VectorAlgorithm = "FLAT"
)

// FieldKind enumerates the schema field kinds the chunk index needs.
type FieldKind int

const (
	FieldTag FieldKind = iota
	FieldNumeric
	FieldVector
)

func (k FieldKind) String() string {
	switch k {
	case FieldTag:
		return "TAG"
	case FieldNumeric:
		return "NUMERIC"
	case FieldVector:
		return "VECTOR"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// VectorSpec holds the VECTOR attributes of a field. FLOAT32 is implied.
type VectorSpec struct {
	Algorithm VectorAlgorithm
	Dim       int
	Distance  DistanceMetric
	// HNSW only; zero leaves the server default (M 16, EF_CONSTRUCTION 200).
	M              int
	EFConstruction int
	// FLAT only.
	BlockSize int
}

// IndexField is one SCHEMA entry. Vector is set only for FieldVector.
type IndexField struct {
	Name          string
	Kind          FieldKind
	CaseSensitive bool
	Vector        *VectorSpec
}

// IndexDefinition describes a HASH-backed FT index.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// VectorField returns the first vector field of the schema.
func (idx *IndexDefinition) VectorField() (IndexField, bool) {
	for _, f := range idx.Fields {
		if f.Kind == FieldVector {
			return f, true
		}
	}
	return IndexField{}, false
}

// Validate checks names, uniqueness and vector attributes.
func (idx *IndexDefinition) Validate() error {
	if !validName(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("index has no fields")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Kind != FieldVector {
			continue
		}
		if f.Vector == nil || f.Vector.Dim <= 0 {
			return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
		}
		switch f.Vector.Algorithm {
		case VectorHNSW, VectorFlat:
		default:
			return fmt.Errorf("vector field %q: unknown algorithm %q", f.Name, f.Vector.Algorithm)
		}
	}
	return nil
}

// validName accepts [a-zA-Z0-9_:-]+, the key alphabet used for index names.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
