package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"houseprice/apperr"
	"houseprice/dataset"
)

// NumericStat holds the fitted imputer and scaler of one numeric column.
type NumericStat struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalStat holds the fitted imputer, encoder and scaler of one
// categorical column. Scales[i] belongs to Categories[i].
type CategoricalStat struct {
	Column     string    `json:"column"`
	Fill       string    `json:"fill"`
	Categories []string  `json:"categories"`
	Scales     []float64 `json:"scales"`
}

// Preprocessor turns a table into the numeric matrix the regressors consume.
// Numeric columns are mean-imputed then standardised; categorical columns are
// imputed with their most frequent value, one-hot encoded (unknown categories
// encode to all zeros) and scaled to unit variance without centering. Columns
// outside both groups are dropped.
type Preprocessor struct {
	NumericColumns     []string          `json:"numeric_columns"`
	CategoricalColumns []string          `json:"categorical_columns"`
	Numeric            []NumericStat     `json:"numeric,omitempty"`
	Categorical        []CategoricalStat `json:"categorical,omitempty"`
	Fitted             bool              `json:"fitted"`

	fingerprint string
}

func NewPreprocessor(numeric, categorical []string) (*Preprocessor, error) {
	seen := make(map[string]bool, len(numeric)+len(categorical))
	for _, name := range append(append([]string(nil), numeric...), categorical...) {
		if seen[name] {
			return nil, fmt.Errorf("column %q listed twice", name)
		}
		seen[name] = true
	}
	if len(seen) == 0 {
		return nil, errors.New("no columns to transform")
	}
	return &Preprocessor{
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
	}, nil
}

// InputColumns lists every column the preprocessor reads.
func (p *Preprocessor) InputColumns() []string {
	return append(append([]string(nil), p.NumericColumns...), p.CategoricalColumns...)
}

// OutputColumns names the columns of the transformed matrix.
func (p *Preprocessor) OutputColumns() []string {
	var names []string
	for _, s := range p.Numeric {
		names = append(names, "num__"+s.Column)
	}
	for _, s := range p.Categorical {
		for _, c := range s.Categories {
			names = append(names, "cat__"+s.Column+"_"+c)
		}
	}
	return names
}

// Width is the number of output columns; zero before Fit.
func (p *Preprocessor) Width() int {
	width := len(p.Numeric)
	for _, s := range p.Categorical {
		width += len(s.Categories)
	}
	return width
}

func (p *Preprocessor) Fit(t *dataset.Table) error {
	const op = "ml.Preprocessor.Fit"

	if t.Len() == 0 {
		return apperr.Errorf(apperr.InvalidData, op, "empty table")
	}
	if missing := t.Missing(p.InputColumns()); len(missing) > 0 {
		return apperr.Errorf(apperr.SchemaMismatch, op, "columns missing: %v", missing)
	}

	numeric := make([]NumericStat, 0, len(p.NumericColumns))
	for _, name := range p.NumericColumns {
		values, err := numericColumn(t, name)
		if err != nil {
			return apperr.E(apperr.SchemaMismatch, op, err)
		}
		numeric = append(numeric, fitNumeric(name, values))
	}

	categorical := make([]CategoricalStat, 0, len(p.CategoricalColumns))
	for _, name := range p.CategoricalColumns {
		values, _ := t.Column(name)
		categorical = append(categorical, fitCategorical(name, values))
	}

	p.Numeric = numeric
	p.Categorical = categorical
	p.Fitted = true
	p.fingerprint = ""
	return nil
}

// numericColumn returns the column as floats with NaN marking nulls.
func numericColumn(t *dataset.Table, name string) ([]float64, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = math.NaN()
			continue
		}
		f, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("column %q row %d: %q is not numeric", name, i, v.String())
		}
		out[i] = f
	}
	return out, nil
}

func fitNumeric(name string, values []float64) NumericStat {
	var sum float64
	var observed int
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			observed++
		}
	}
	mean := 0.0
	if observed > 0 {
		mean = sum / float64(observed)
	}

	imputed := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = mean
		}
		imputed[i] = v
	}
	_, variance := stat.PopMeanVariance(imputed, nil)
	return NumericStat{Column: name, Mean: mean, Scale: safeScale(variance)}
}

func fitCategorical(name string, values []dataset.Value) CategoricalStat {
	counts := make(map[string]int)
	for _, v := range values {
		if !v.IsNull() {
			counts[v.String()]++
		}
	}

	fill := ""
	best := -1
	for category, n := range counts {
		if n > best || (n == best && category < fill) {
			fill, best = category, n
		}
	}
	if best < 0 {
		counts[fill] = 0
	}
	missing := 0
	for _, v := range values {
		if v.IsNull() {
			missing++
		}
	}
	counts[fill] += missing

	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	total := float64(len(values))
	scales := make([]float64, len(categories))
	for i, category := range categories {
		p := float64(counts[category]) / total
		scales[i] = safeScale(p * (1 - p))
	}
	return CategoricalStat{Column: name, Fill: fill, Categories: categories, Scales: scales}
}

func safeScale(variance float64) float64 {
	std := math.Sqrt(variance)
	if std == 0 || math.IsNaN(std) {
		return 1
	}
	return std
}

// Transform requires the table to carry every fit-time input column; extra
// columns are ignored.
func (p *Preprocessor) Transform(t *dataset.Table) (*mat.Dense, error) {
	const op = "ml.Preprocessor.Transform"

	if !p.Fitted {
		return nil, apperr.Errorf(apperr.InvalidData, op, "preprocessor not fitted")
	}
	if t == nil || t.Len() == 0 {
		return nil, apperr.Errorf(apperr.InvalidData, op, "empty table")
	}
	if missing := t.Missing(p.InputColumns()); len(missing) > 0 {
		return nil, apperr.Errorf(apperr.SchemaMismatch, op, "columns missing: %v", missing)
	}

	out := mat.NewDense(t.Len(), p.Width(), nil)
	col := 0
	for _, s := range p.Numeric {
		values, err := numericColumn(t, s.Column)
		if err != nil {
			return nil, apperr.E(apperr.SchemaMismatch, op, err)
		}
		for i, v := range values {
			if math.IsNaN(v) {
				v = s.Mean
			}
			out.Set(i, col, (v-s.Mean)/s.Scale)
		}
		col++
	}

	for _, s := range p.Categorical {
		values, _ := t.Column(s.Column)
		for i, v := range values {
			category := s.Fill
			if !v.IsNull() {
				category = v.String()
			}
			k := sort.SearchStrings(s.Categories, category)
			if k < len(s.Categories) && s.Categories[k] == category {
				out.Set(i, col+k, 1/s.Scales[k])
			}
		}
		col += len(s.Categories)
	}
	return out, nil
}

func (p *Preprocessor) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	if err := p.Fit(t); err != nil {
		return nil, err
	}
	return p.Transform(t)
}

func (p *Preprocessor) Save(path string) error {
	if !p.Fitted {
		return errors.New("preprocessor not fitted")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := writeArtifact(path, payload); err != nil {
		return err
	}
	p.fingerprint = fingerprintOf(payload)
	return nil
}

// Fingerprint identifies the fitted state. A model saved against this
// preprocessor carries the same value.
func (p *Preprocessor) Fingerprint() (string, error) {
	if p.fingerprint != "" {
		return p.fingerprint, nil
	}
	if !p.Fitted {
		return "", errors.New("preprocessor not fitted")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	p.fingerprint = fingerprintOf(payload)
	return p.fingerprint, nil
}

func fingerprintOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func LoadPreprocessor(path string) (*Preprocessor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preprocessor
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode preprocessor %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("preprocessor %s: %w", path, err)
	}
	p.fingerprint = fingerprintOf(payload)
	return &p, nil
}

// validate rejects decoded state that Transform cannot use safely.
func (p *Preprocessor) validate() error {
	if !p.Fitted {
		return errors.New("not fitted")
	}
	if len(p.Numeric) != len(p.NumericColumns) {
		return fmt.Errorf("%d numeric stats for %d numeric columns", len(p.Numeric), len(p.NumericColumns))
	}
	for i, s := range p.Numeric {
		if s.Column != p.NumericColumns[i] {
			return fmt.Errorf("numeric stat %d is for %q, expected %q", i, s.Column, p.NumericColumns[i])
		}
		if !finite(s.Mean) || !finite(s.Scale) || s.Scale <= 0 {
			return fmt.Errorf("column %q: invalid mean %v or scale %v", s.Column, s.Mean, s.Scale)
		}
	}
	if len(p.Categorical) != len(p.CategoricalColumns) {
		return fmt.Errorf("%d categorical stats for %d categorical columns", len(p.Categorical), len(p.CategoricalColumns))
	}
	for i, s := range p.Categorical {
		if s.Column != p.CategoricalColumns[i] {
			return fmt.Errorf("categorical stat %d is for %q, expected %q", i, s.Column, p.CategoricalColumns[i])
		}
		if len(s.Categories) == 0 || len(s.Scales) != len(s.Categories) {
			return fmt.Errorf("column %q: %d scales for %d categories", s.Column, len(s.Scales), len(s.Categories))
		}
		if !sort.StringsAreSorted(s.Categories) {
			return fmt.Errorf("column %q: categories are not sorted", s.Column)
		}
		for _, scale := range s.Scales {
			if !finite(scale) || scale <= 0 {
				return fmt.Errorf("column %q: invalid scale %v", s.Column, scale)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func writeArtifact(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
