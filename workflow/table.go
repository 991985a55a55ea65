package workflow

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Table 加载到内存的数据集视图，阶段处理器共用。
type Table struct {
	Columns []string
	Rows    [][]string
}

// LoadCSV 读取 CSV 文件。首行作为表头，短行补空、长行截断的脏数据直接报错。
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file failed: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset csv failed: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset csv is empty: %s", path)
	}

	return &Table{
		Columns: records[0],
		Rows:    records[1:],
	}, nil
}

// ColumnIndex 返回列下标，找不到返回 -1。
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column 返回某一列的原始取值。
func (t *Table) Column(idx int) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}
	return values
}

func isMissing(v string) bool {
	s := strings.TrimSpace(v)
	return s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null")
}

// numericValues 过滤缺失后尝试按数值解析；ok 表示非缺失值全部可解析。
func numericValues(values []string) (nums []float64, ok bool) {
	for _, v := range values {
		if isMissing(v) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, len(nums) > 0
}

func mean(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums))
}

func std(nums []float64) float64 {
	if len(nums) < 2 {
		return 0
	}
	m := mean(nums)
	var sum float64
	for _, n := range nums {
		d := n - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(nums)-1))
}

func median(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
