package bank

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/questionbot/internal/model"
)

const sampleCSV = `Year,Sub,ExamType,Type,Difficulty,Question
2020,Math,Final,Theory,Easy,derivative rules
2021,Math,Mid,Numerical,Hard,integral rules
`

func TestLoad(t *testing.T) {
	b, err := Load(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", b.Len())
	}
	got := b.All()[1]
	want := model.QuestionRecord{
		Year:         "2021",
		Subject:      "Math",
		ExamType:     "Mid",
		QuestionType: "Numerical",
		Difficulty:   "Hard",
		Text:         "integral rules",
	}
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}
	if b.Checksum() == "" {
		t.Error("expected checksum to be set")
	}
}

func TestLoadLatin1Fallback(t *testing.T) {
	// "café" with é encoded as the single Latin-1 byte 0xE9.
	data := "year,sub,examtype,type,difficulty,question\n2022,Chem,Final,Theory,Easy,caf\xe9 chemistry\n"
	b, err := Load(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := b.All()[0].Text; got != "café chemistry" {
		t.Errorf("text = %q, want %q", got, "café chemistry")
	}
}

func TestLoadStripsBOM(t *testing.T) {
	b, err := Load(strings.NewReader("\ufeff" + sampleCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("expected 2 records, got %d", b.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"missing column", "year,sub,examtype,type,question\n2020,Math,Final,Theory,q\n"},
		{"blank header", "\n\n"},
		{"wrong delimiter", "year;sub;examtype;type;difficulty;question\n2020;Math;Final;Theory;Easy;q\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.data))
			if !errors.Is(err, model.ErrDataUnavailable) {
				t.Errorf("expected ErrDataUnavailable, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "QUESTIONPAPER.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if b.Source() != path {
		t.Errorf("source = %q, want %q", b.Source(), path)
	}

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for missing file, got %v", err)
	}
}

func TestShortRowsPadded(t *testing.T) {
	b, err := Load(strings.NewReader("year,sub,examtype,type,difficulty,question\n2020,Math\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := b.All()[0]
	if r.Subject != "Math" || r.Text != "" {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestNormalizeYear(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2021", "2021"},
		{" 2021 ", "2021"},
		{"2021.0", "2021"},
		{"2021.5", "2021.5"},
		{"", ""},
		{"2020-21", "2020-21"},
	}
	for _, tt := range tests {
		if got := NormalizeYear(tt.in); got != tt.want {
			t.Errorf("NormalizeYear(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmpty(t *testing.T) {
	b := Empty()
	if b.Len() != 0 || len(b.All()) != 0 {
		t.Error("expected empty bank")
	}
}
