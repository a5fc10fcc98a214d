package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
)

const (
	maxFileSize   = 10 << 20
	maxTextSize   = 1 << 20
	minTextRunes  = 100
	minDiversity  = 0.1
	utf8BOM       = "\ufeff"
	encodingUTF8  = "utf-8"
	encodingEUCKR = "euc-kr"
	encodingLatin = "latin-1"
)

var (
	spaceRun    = regexp.MustCompile(`[ ]+`)
	newlineRun  = regexp.MustCompile(`\n{3,}`)
	controlRune = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x84\x86-\x9f]`)
	meaningful  = regexp.MustCompile(`[a-zA-Z0-9가-힣]`)
)

// legacyEncodings are tried in order when a file is not valid UTF-8.
// EUC-KR in x/text decodes the CP949 extension as well.
var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{encodingEUCKR, korean.EUCKR},
	{encodingLatin, charmap.ISO8859_1},
}

// readTextFile loads a text file and reports the encoding it was decoded with.
func readTextFile(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return "", "", fmt.Errorf("%s too large: %d bytes (max %d)", path, info.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	text, enc, err := decodeText(raw)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%s is empty", path)
	}
	return text, enc, nil
}

// decodeText converts raw bytes to UTF-8, stripping a UTF-8 BOM.
func decodeText(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, []byte(utf8BOM))
	if utf8.Valid(raw) {
		return string(raw), encodingUTF8, nil
	}
	for _, le := range legacyEncodings {
		out, err := le.enc.NewDecoder().Bytes(raw)
		if err == nil && utf8.Valid(out) && !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out), le.name, nil
		}
	}
	return "", "", fmt.Errorf("no supported encoding")
}

// preprocess normalizes line endings and whitespace and drops control characters.
func preprocess(text string) string {
	text = strings.ReplaceAll(text, utf8BOM, "")
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	text = controlRune.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// validateText rejects texts that are too short, too long, carry no letters
// or digits, or repeat a handful of characters.
func validateText(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n < minTextRunes:
		return fmt.Errorf("text too short: %d runes (min %d)", n, minTextRunes)
	case len(text) > maxTextSize:
		return fmt.Errorf("text too long: %d bytes (max %d)", len(text), maxTextSize)
	case !meaningful.MatchString(text):
		return fmt.Errorf("text has no meaningful content")
	}

	distinct := make(map[rune]struct{})
	for _, r := range text {
		distinct[r] = struct{}{}
	}
	if float64(len(distinct))/float64(utf8.RuneCountInString(text)) < minDiversity {
		return fmt.Errorf("text diversity too low")
	}
	return nil
}
