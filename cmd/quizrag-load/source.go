package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	quizrag "github.com/kailas-cloud/quizrag/pkg/sdk"
)

const parquetReadBatch = 256

var idUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// parquetDocument is one row of a corpus parquet file.
type parquetDocument struct {
	ID      string `parquet:"id"`
	Text    string `parquet:"text"`
	Source  string `parquet:"source,optional"`
	Subject string `parquet:"subject,optional"`
	Unit    string `parquet:"unit,optional"`
}

// record is a document read from the corpus together with its position.
// Row is 0 for text files, the row index for parquet files.
type record struct {
	doc  quizrag.Document
	file int
	row  int
	err  error
}

// corpus lists loadable files under a root directory in a stable order.
type corpus struct {
	root    string
	files   []string
	subject string
	unit    string
}

func isCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".parquet":
		return true
	default:
		return false
	}
}

// newCorpus scans root recursively for .txt, .md and .parquet files.
// Non-empty subject and unit override the tags derived from the directory layout.
func newCorpus(root, subject, unit string) (*corpus, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && isCorpusFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .txt, .md or .parquet files found in %s", root)
	}
	slices.Sort(files)
	return &corpus{root: root, files: files, subject: subject, unit: unit}, nil
}

// Read emits records starting at fileIndex/rowOffset. Returning false from
// emit stops the scan.
func (c *corpus) Read(fileIndex, rowOffset int, emit func(record) bool) error {
	for fi := fileIndex; fi < len(c.files); fi++ {
		skip := 0
		if fi == fileIndex {
			skip = rowOffset
		}
		path := c.files[fi]
		if strings.EqualFold(filepath.Ext(path), ".parquet") {
			cont, err := c.readParquet(fi, skip, emit)
			if err != nil {
				return fmt.Errorf("read %s: %w", filepath.Base(path), err)
			}
			if !cont {
				return nil
			}
			continue
		}
		if skip > 0 {
			continue
		}
		if !emit(c.readText(fi)) {
			return nil
		}
	}
	return nil
}

func (c *corpus) readText(fi int) record {
	path := c.files[fi]
	rel := c.rel(path)
	rec := record{file: fi}

	raw, _, err := readTextFile(path)
	if err != nil {
		rec.err = err
		rec.doc.ID = documentID(rel)
		return rec
	}
	text := preprocess(raw)
	if err := validateText(text); err != nil {
		rec.err = fmt.Errorf("%s: %w", rel, err)
	}

	subject, unit := tagsFromPath(rel)
	rec.doc = quizrag.Document{
		ID:      documentID(rel),
		Text:    text,
		Source:  rel,
		Subject: firstNonEmpty(c.subject, subject),
		Unit:    firstNonEmpty(c.unit, unit),
	}
	return rec
}

func (c *corpus) readParquet(fi, skip int, emit func(record) bool) (bool, error) {
	f, err := os.Open(c.files[fi])
	if err != nil {
		return false, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := parquet.NewGenericReader[parquetDocument](f)
	defer func() { _ = r.Close() }()
	if skip > 0 {
		if err := r.SeekToRow(int64(skip)); err != nil {
			return false, fmt.Errorf("seek to row %d: %w", skip, err)
		}
	}

	rel := c.rel(c.files[fi])
	buf := make([]parquetDocument, parquetReadBatch)
	row := skip
	for {
		n, readErr := r.Read(buf)
		for _, d := range buf[:n] {
			rec := record{file: fi, row: row, doc: quizrag.Document{
				ID:      d.ID,
				Text:    preprocess(d.Text),
				Source:  firstNonEmpty(d.Source, fmt.Sprintf("%s#%d", rel, row)),
				Subject: firstNonEmpty(c.subject, d.Subject),
				Unit:    firstNonEmpty(c.unit, d.Unit),
			}}
			if rec.doc.ID == "" {
				rec.doc.ID = documentID(fmt.Sprintf("%s#%d", rel, row))
			}
			row++
			if !emit(rec) {
				return false, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return true, nil
			}
			return false, fmt.Errorf("read rows: %w", readErr)
		}
	}
}

func (c *corpus) rel(path string) string {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// tagsFromPath derives subject and unit from <subject>/<unit>/<file>.
func tagsFromPath(rel string) (string, string) {
	parts := strings.Split(rel, "/")
	switch {
	case len(parts) >= 3:
		return parts[0], parts[1]
	case len(parts) == 2:
		return parts[0], ""
	default:
		return "", ""
	}
}

// documentID builds a stable ID from a corpus-relative path. Names without
// ASCII characters fall back to a name-based UUID.
func documentID(rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	slug := strings.Trim(idUnsafe.ReplaceAllString(base, "-"), "-.")
	suffix := uuid.NewSHA1(uuid.NameSpaceURL, []byte(rel)).String()[:8]
	if slug == "" {
		return "doc-" + suffix
	}
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug + "-" + suffix
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
