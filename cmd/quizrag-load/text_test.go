package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"
)

func TestDecodeText(t *testing.T) {
	euc, err := korean.EUCKR.NewEncoder().String("일차함수의 기울기")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name     string
		raw      []byte
		want     string
		encoding string
	}{
		{"utf-8", []byte("기울기"), "기울기", encodingUTF8},
		{"utf-8 bom", append([]byte("\ufeff"), []byte("절편")...), "절편", encodingUTF8},
		{"euc-kr", []byte(euc), "일차함수의 기울기", encodingEUCKR},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, enc, err := decodeText(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want || enc != tc.encoding {
				t.Errorf("decodeText = %q (%s), want %q (%s)", got, enc, tc.want, tc.encoding)
			}
		})
	}
}

func TestPreprocess(t *testing.T) {
	in := "\ufeff  제목\t\t부분 \r\n\r\n\r\n\r\n본문\x00입니다   \r끝  "
	want := "제목 부분\n\n본문입니다\n끝"
	if got := preprocess(in); got != want {
		t.Errorf("preprocess() = %q, want %q", got, want)
	}
}

func TestValidateText(t *testing.T) {
	long := strings.Repeat("일차함수 y=ax+b에서 a는 기울기이다. ", 5)
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"valid", long, false},
		{"too short", "기울기", true},
		{"no meaningful content", strings.Repeat("!? ", 50), true},
		{"low diversity", strings.Repeat("가", 200), true},
		{"too long", strings.Repeat("가나다라마바사아자차", maxTextSize/10), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateText(tc.text)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateText() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadTextFile_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := readTextFile(empty); err == nil {
		t.Error("expected error for empty file")
	}
	if _, _, err := readTextFile(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, _, err := readTextFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
