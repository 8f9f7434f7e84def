package training

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"houseprice/dataset"
)

// Record is one table row handed to the cleaning rules.
type Record struct {
	Index  int
	table  *dataset.Table
	values []dataset.Value
}

func (r Record) Get(column string) (dataset.Value, bool) {
	idx := r.table.Index(column)
	if idx < 0 {
		return dataset.Null(), false
	}
	return r.values[idx], true
}

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(Record) error
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // low, medium, high
	Message  string `json:"message"`
	Row      int    `json:"row"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int            `json:"total_processed"`
	Passed         int            `json:"passed"`
	Rejected       int            `json:"rejected"`
	Issues         map[string]int `json:"issues"`
}

// DataCleaner runs every rule over each row and drops a row failing any of them.
type DataCleaner struct {
	rules []CleaningRule
	stats CleaningStats
	log   *zap.Logger
}

func NewDataCleaner(log *zap.Logger) *DataCleaner {
	return &DataCleaner{
		log:   log,
		stats: CleaningStats{Issues: make(map[string]int)},
	}
}

// NewHousingCleaner builds a cleaner with the rules the training flow needs.
func NewHousingCleaner(target string, numeric []string, keyColumn string, log *zap.Logger) *DataCleaner {
	cleaner := NewDataCleaner(log)
	cleaner.AddRule(NewTargetValidationRule(target))
	cleaner.AddRule(NewNumericValidationRule(numeric))
	cleaner.AddRule(NewDuplicateDetectionRule(keyColumn))
	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.log.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean 清洗数据
func (dc *DataCleaner) Clean(t *dataset.Table) (*dataset.Table, []QualityIssue) {
	var kept []int
	var issues []QualityIssue

	for i, values := range t.Rows {
		dc.stats.TotalProcessed++
		record := Record{Index: i, table: t, values: values}

		var rowIssues []QualityIssue
		for _, rule := range dc.rules {
			if err := rule.Apply(record); err != nil {
				rowIssues = append(rowIssues, QualityIssue{
					Type:     rule.Name(),
					Severity: "high",
					Message:  err.Error(),
					Row:      i,
				})
				dc.stats.Issues[rule.Name()]++
			}
		}

		if len(rowIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, rowIssues...)
			continue
		}
		dc.stats.Passed++
		kept = append(kept, i)
	}

	for _, issue := range issues {
		dc.log.Warn("row rejected",
			zap.String("rule", issue.Type),
			zap.Int("row", issue.Row),
			zap.String("reason", issue.Message),
		)
	}
	return t.Subset(kept), issues
}

func (dc *DataCleaner) GetStats() CleaningStats {
	return dc.stats
}

// ============ 清洗规则实现 ============

// TargetValidationRule rejects rows whose target cannot be log transformed.
type TargetValidationRule struct {
	Column string
}

func NewTargetValidationRule(column string) *TargetValidationRule {
	return &TargetValidationRule{Column: column}
}

func (r *TargetValidationRule) Name() string {
	return "target_validation"
}

func (r *TargetValidationRule) Apply(record Record) error {
	v, ok := record.Get(r.Column)
	if !ok || v.IsNull() {
		return fmt.Errorf("%s is missing", r.Column)
	}
	f, ok := v.Float()
	if !ok {
		return fmt.Errorf("%s %q is not numeric", r.Column, v.String())
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("%s %v is not a positive price", r.Column, f)
	}
	return nil
}

// NumericValidationRule rejects rows with text in a numeric feature column.
type NumericValidationRule struct {
	Columns []string
}

func NewNumericValidationRule(columns []string) *NumericValidationRule {
	return &NumericValidationRule{Columns: columns}
}

func (r *NumericValidationRule) Name() string {
	return "numeric_validation"
}

func (r *NumericValidationRule) Apply(record Record) error {
	for _, column := range r.Columns {
		v, ok := record.Get(column)
		if !ok || v.IsNull() {
			continue
		}
		if _, ok := v.Float(); !ok {
			return fmt.Errorf("%s %q is not numeric", column, v.String())
		}
	}
	return nil
}

// DuplicateDetectionRule rejects repeats of an identifier column. Rows
// without the column or with a null key pass.
type DuplicateDetectionRule struct {
	Column  string
	seenMap map[string]struct{}
}

func NewDuplicateDetectionRule(column string) *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		Column:  column,
		seenMap: make(map[string]struct{}),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(record Record) error {
	if r.Column == "" {
		return nil
	}
	v, ok := record.Get(r.Column)
	if !ok || v.IsNull() {
		return nil
	}
	key := v.String()
	if _, exists := r.seenMap[key]; exists {
		return fmt.Errorf("duplicate %s %s", r.Column, key)
	}
	r.seenMap[key] = struct{}{}
	return nil
}
