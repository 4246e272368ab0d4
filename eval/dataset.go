package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Dataset is a collection of test cases for evaluation.
type Dataset struct {
	Name       string           `json:"name" yaml:"name"`
	Tests      []TestCase       `json:"tests" yaml:"tests"`
	Paraphrase []ParaphrasePair `json:"paraphrase,omitempty" yaml:"paraphrase,omitempty"`
}

// TestCase defines a single evaluation question.
type TestCase struct {
	Question string `json:"question" yaml:"question"`
	// ExpectedEntity is the local name that should rank in the top five.
	ExpectedEntity string `json:"expected_entity,omitempty" yaml:"expected_entity,omitempty"`
	// ExpectedIntent is optional; when set it is checked against Classify.
	ExpectedIntent string `json:"expected_intent,omitempty" yaml:"expected_intent,omitempty"`
	// ExpectedFacts should appear in the answer text. A fact may hold
	// pipe-separated alternatives ("Día 2|domingo").
	ExpectedFacts []string `json:"expected_facts,omitempty" yaml:"expected_facts,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// ParaphrasePair is two phrasings that should retrieve the same top entity.
type ParaphrasePair struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// SampleDataset returns the built-in festival questions.
func SampleDataset() Dataset {
	return Dataset{
		Name: "qoyllur-sample",
		Tests: []TestCase{
			{
				Question:       "¿Qué es Qoyllur Rit'i?",
				ExpectedEntity: "QoyllurRiti",
				ExpectedIntent: "generic_what",
				ExpectedFacts:  []string{"Qoyllur Rit'i", "peregrinación|Sinakara"},
				Category:       "definition",
			},
			{
				Question:       "¿Dónde está el glaciar Colque Punku?",
				ExpectedEntity: "ColquePunku",
				ExpectedIntent: "location",
				ExpectedFacts:  []string{"Colque Punku", "glaciar|nevado"},
				Category:       "location",
			},
			{
				Question:       "¿Quién realiza la lomada?",
				ExpectedEntity: "Lomada",
				ExpectedIntent: "agent",
				ExpectedFacts:  []string{"Lomada", "Paucartambo"},
				Category:       "agent",
			},
			{
				Question:       "¿Qué eventos hay el día 2?",
				ExpectedEntity: "Dia2_DomingoPartida",
				ExpectedIntent: "event_listing",
				ExpectedFacts:  []string{"Misa de envío", "Peregrinación"},
				Category:       "listing",
			},
			{
				Question:       "¿Cuándo es la bajada del hielo?",
				ExpectedEntity: "BajadaDelHielo",
				ExpectedIntent: "time",
				ExpectedFacts:  []string{"Bajada del hielo"},
				Category:       "time",
			},
			{
				Question:       "¿Qué hacen los ukukus?",
				ExpectedEntity: "Ukukus",
				ExpectedFacts:  []string{"Ukukus", "glaciar|guardianes"},
				Category:       "definition",
			},
		},
		Paraphrase: []ParaphrasePair{
			{A: "¿Dónde está el santuario?", B: "ubicación del templo del Señor de Qoyllur Rit'i"},
			{A: "guardianes del glaciar", B: "¿Quiénes son los ukukus?"},
			{A: "actividades del día 3", B: "¿Qué pasa el lunes de ascenso?"},
		},
	}
}

// LoadDataset reads a dataset file. The format follows the extension:
// .yaml/.yml, .json or .xlsx.
func LoadDataset(path string) (Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Dataset{}, fmt.Errorf("reading dataset: %w", err)
		}
		var ds Dataset
		if ext == ".json" {
			err = json.Unmarshal(data, &ds)
		} else {
			err = yaml.Unmarshal(data, &ds)
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("decoding dataset %s: %w", filepath.Base(path), err)
		}
		return finishDataset(ds, path)
	case ".xlsx":
		ds, err := loadXLSX(path)
		if err != nil {
			return Dataset{}, err
		}
		return finishDataset(ds, path)
	default:
		return Dataset{}, fmt.Errorf("unsupported dataset format %q", ext)
	}
}

func finishDataset(ds Dataset, path string) (Dataset, error) {
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i, tc := range ds.Tests {
		if strings.TrimSpace(tc.Question) == "" {
			return Dataset{}, fmt.Errorf("dataset %s: test %d has no question", ds.Name, i+1)
		}
	}
	if len(ds.Tests) == 0 && len(ds.Paraphrase) == 0 {
		return Dataset{}, fmt.Errorf("dataset %s is empty", ds.Name)
	}
	return ds, nil
}

// Columns of the XLSX "tests" sheet. Facts are separated by ";".
var xlsxTestColumns = []string{"question", "expected_entity", "expected_intent", "expected_facts", "category"}

const (
	xlsxTestsSheet      = "tests"
	xlsxParaphraseSheet = "paraphrase"
)

// loadXLSX reads a workbook with a "tests" sheet (columns as in
// xlsxTestColumns, header row optional) and an optional "paraphrase" sheet
// holding "a | b" rows. When no sheet is named "tests" the first sheet is
// used.
func loadXLSX(path string) (Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("opening XLSX dataset: %w", err)
	}
	defer f.Close()

	var ds Dataset
	sheets := f.GetSheetList()
	testsSheet := ""
	for _, s := range sheets {
		if strings.EqualFold(s, xlsxTestsSheet) {
			testsSheet = s
		}
	}
	if testsSheet == "" && len(sheets) > 0 && !strings.EqualFold(sheets[0], xlsxParaphraseSheet) {
		testsSheet = sheets[0]
	}

	if testsSheet != "" {
		rows, err := f.GetRows(testsSheet)
		if err != nil {
			return Dataset{}, fmt.Errorf("reading sheet %s: %w", testsSheet, err)
		}
		for i, row := range rows {
			if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "question") {
				continue
			}
			q := cell(row, 0)
			if q == "" {
				continue
			}
			ds.Tests = append(ds.Tests, TestCase{
				Question:       q,
				ExpectedEntity: cell(row, 1),
				ExpectedIntent: cell(row, 2),
				ExpectedFacts:  splitFacts(cell(row, 3)),
				Category:       cell(row, 4),
			})
		}
	}

	for _, s := range sheets {
		if !strings.EqualFold(s, xlsxParaphraseSheet) {
			continue
		}
		rows, err := f.GetRows(s)
		if err != nil {
			return Dataset{}, fmt.Errorf("reading sheet %s: %w", s, err)
		}
		for _, row := range rows {
			a, b := cell(row, 0), cell(row, 1)
			if a == "" || b == "" || (strings.EqualFold(a, "a") && strings.EqualFold(b, "b")) {
				continue
			}
			ds.Paraphrase = append(ds.Paraphrase, ParaphrasePair{A: a, B: b})
		}
	}
	return ds, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitFacts(s string) []string {
	var facts []string
	for _, f := range strings.Split(s, ";") {
		if f = strings.TrimSpace(f); f != "" {
			facts = append(facts, f)
		}
	}
	return facts
}
