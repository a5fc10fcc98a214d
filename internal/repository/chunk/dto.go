package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	domchunk "github.com/kailas-cloud/quizrag/internal/domain/chunk"
)

// Hash field names. "pos" is the chunk position within its document,
// "seq" the index-wide insertion sequence.
const (
	fieldText     = "text"
	fieldDocument = "doc_id"
	fieldPos      = "pos"
	fieldSeq      = "seq"
	fieldStart    = "start"
	fieldEnd      = "end"
	fieldSource   = "source"
	fieldSubject  = "subject"
	fieldUnit     = "unit"
	fieldModel    = "model"
	fieldVector   = "vector"
)

var returnFields = []string{
	fieldText, fieldDocument, fieldPos, fieldSeq, fieldStart, fieldEnd,
	fieldSource, fieldSubject, fieldUnit,
}

// buildHashFields converts a record into a flat map[string]string for HSET.
func buildHashFields(r domchunk.Record, seq int64) map[string]string {
	c := r.Chunk()
	m := map[string]string{
		fieldText:     c.Text(),
		fieldDocument: c.DocumentID(),
		fieldPos:      strconv.Itoa(c.Seq()),
		fieldSeq:      strconv.FormatInt(seq, 10),
		fieldStart:    strconv.Itoa(c.Start()),
		fieldEnd:      strconv.Itoa(c.End()),
		fieldModel:    r.Model(),
		fieldVector:   vectorToBytes(r.Vector()),
	}
	// empty TAG values are not indexed, keep them out of the hash
	if c.Source() != "" {
		m[fieldSource] = c.Source()
	}
	if c.Subject() != "" {
		m[fieldSubject] = c.Subject()
	}
	if c.Unit() != "" {
		m[fieldUnit] = c.Unit()
	}
	return m
}

// parseHashFields converts flat hash fields back into a chunk and its insertion sequence.
func parseHashFields(id string, m map[string]string) (domchunk.Chunk, int64, error) {
	ints := make(map[string]int, 3)
	for _, k := range []string{fieldPos, fieldStart, fieldEnd} {
		n, err := strconv.Atoi(m[k])
		if err != nil {
			return domchunk.Chunk{}, 0, fmt.Errorf("chunk %s field %s: %w", id, k, err)
		}
		ints[k] = n
	}
	seq, err := strconv.ParseInt(m[fieldSeq], 10, 64)
	if err != nil {
		return domchunk.Chunk{}, 0, fmt.Errorf("chunk %s field %s: %w", id, fieldSeq, err)
	}

	c := domchunk.Reconstruct(id, m[fieldDocument], ints[fieldPos], ints[fieldStart], ints[fieldEnd],
		m[fieldText], m[fieldSource], m[fieldSubject], m[fieldUnit])
	return c, seq, nil
}

func chunkKey(id string) string { return keyPrefix + id }

func chunkID(key string) string { return strings.TrimPrefix(key, keyPrefix) }

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
