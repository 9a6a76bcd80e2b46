package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymGroup lists interchangeable terms. When any term appears in a
// query, the others are appended during query rewriting.
type SynonymGroup struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// KeywordTables holds the vocabulary used by heuristic SQL synthesis, task
// document generation and query rewriting. The defaults are tuned for an
// orders/products schema; deployments can override any list from YAML.
type KeywordTables struct {
	OrderTable          []string       `yaml:"order_table"`
	DateColumn          []string       `yaml:"date_column"`
	AmountColumn        []string       `yaml:"amount_column"`
	LastSevenDays       []string       `yaml:"last_seven_days"`
	DetailIntent        []string       `yaml:"detail_intent"`
	ProductTable        []string       `yaml:"product_table"`
	DetailColumns       []string       `yaml:"detail_columns"`
	TaskDocumentColumns []string       `yaml:"task_document_columns"`
	Synonyms            []SynonymGroup `yaml:"synonyms"`
}

// DefaultKeywordTables returns the built-in keyword tables.
func DefaultKeywordTables() *KeywordTables {
	return &KeywordTables{
		OrderTable:          []string{"order", "orders", "交易", "订单"},
		DateColumn:          []string{"date", "dt", "时间", "日期", "created_at", "order_date", "下单"},
		AmountColumn:        []string{"amount", "total_amount", "gmv", "price", "pay", "支付", "金额", "交易额"},
		LastSevenDays:       []string{"近7天", "最近7天", "past 7", "last 7", "近七天"},
		DetailIntent:        []string{"明细", "详情", "清单", "列表", "detail", "details", "list", "商品", "产品", "product", "products", "sku", "goods"},
		ProductTable:        []string{"product", "products", "sku", "goods", "item", "商品", "产品"},
		DetailColumns:       []string{"id", "name", "category", "brand", "price"},
		TaskDocumentColumns: []string{"id", "name", "category", "brand", "price", "email", "phone", "city", "address", "status"},
		Synonyms: []SynonymGroup{
			{Name: "order", Terms: []string{"order", "orders", "订单", "交易"}},
			{Name: "amount", Terms: []string{"amount", "gmv", "金额", "交易额", "销售额"}},
			{Name: "customer", Terms: []string{"customer", "customers", "客户", "用户"}},
			{Name: "last_7_days", Terms: []string{"last 7 days", "近7天", "最近7天", "近七天"}},
			{Name: "last_30_days", Terms: []string{"last 30 days", "近30天", "最近30天", "近一个月"}},
			{Name: "product", Terms: []string{"product", "products", "sku", "goods", "商品", "产品"}},
			{Name: "category", Terms: []string{"category", "类目", "品类", "分类"}},
			{Name: "brand", Terms: []string{"brand", "品牌"}},
		},
	}
}

// LoadKeywordTables returns the defaults overridden by any non-empty list in
// the YAML file at path. An empty path returns the defaults.
func LoadKeywordTables(path string) (*KeywordTables, error) {
	tables := DefaultKeywordTables()
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword tables: %w", err)
	}

	var override KeywordTables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse keyword tables %s: %w", path, err)
	}

	overrideList(&tables.OrderTable, override.OrderTable)
	overrideList(&tables.DateColumn, override.DateColumn)
	overrideList(&tables.AmountColumn, override.AmountColumn)
	overrideList(&tables.LastSevenDays, override.LastSevenDays)
	overrideList(&tables.DetailIntent, override.DetailIntent)
	overrideList(&tables.ProductTable, override.ProductTable)
	overrideList(&tables.DetailColumns, override.DetailColumns)
	overrideList(&tables.TaskDocumentColumns, override.TaskDocumentColumns)
	if len(override.Synonyms) > 0 {
		tables.Synonyms = override.Synonyms
	}

	return tables, nil
}

func overrideList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+|[\x{4e00}-\x{9fa5}]{2,}`)

// Tokenize splits text into lowercase alphanumeric runs and CJK runs of two
// or more characters.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(strings.TrimSpace(text)), -1)
}

// containsAny reports whether s contains any of the keywords as a substring.
func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// sharesToken reports whether any token is a substring of any of the texts.
// An empty token list matches everything.
func sharesToken(tokens []string, texts ...string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, text := range texts {
		if containsAny(strings.ToLower(text), tokens) {
			return true
		}
	}
	return false
}
