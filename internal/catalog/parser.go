// Package catalog はプロジェクトカタログのCSVインポートを提供する。
//
// 配布元によってCSVの体裁が揺れるため、パーサは区切り文字の自動判別
// （カンマ・セミコロン・タブ）、ヘッダ名のゆらぎ、通貨記号付き数値、
// total/registeredの入れ替わりを許容する。
package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hitoshi/volman/internal/model"
)

// 論理フィールド名。ヘッダのゆらぎはこの正規名に写像される。
const (
	fieldTitle      = "title"
	fieldLocation   = "location"
	fieldDay        = "day"
	fieldHourlyRate = "hourly_rate"
	fieldTotal      = "total_slots"
	fieldRegistered = "registered_slots"
)

// headerAliases はヘッダ表記のゆらぎから正規フィールド名への写像。
// 比較前に小文字化・空白正規化を行うため、キーはすべて小文字。
var headerAliases = map[string]string{
	"title":             fieldTitle,
	"project title":     fieldTitle,
	"location":          fieldLocation,
	"day":               fieldDay,
	"hourly_rate":       fieldHourlyRate,
	"hourly_value":      fieldHourlyRate,
	"hourly value":      fieldHourlyRate,
	"hourly value (aud)": fieldHourlyRate,
	"total_slots":       fieldTotal,
	"total slots":       fieldTotal,
	"#total slots":      fieldTotal,
	"registered_slots":  fieldRegistered,
	"registered slots":  fieldRegistered,
	"#registered slots": fieldRegistered,
}

// ParseProjects はCSV/TSVストリームからプロジェクト行を読み取る。
// 1行目をヘッダとして解釈し、必須フィールドが欠けている場合はエラーを返す。
// 空行はスキップする。返り値のProjectはID未設定・Active=true。
func ParseProjects(r io.Reader) ([]*model.Project, error) {
	br := bufio.NewReader(r)

	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")
	// UTF-8 BOMを除去
	headerLine = strings.TrimPrefix(headerLine, "\uFEFF")
	if strings.TrimSpace(headerLine) == "" {
		return nil, fmt.Errorf("empty CSV: missing header row")
	}

	delim := detectDelimiter(headerLine)

	headerReader := csv.NewReader(strings.NewReader(headerLine))
	headerReader.Comma = delim
	headerReader.LazyQuotes = true
	headerCells, err := headerReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	index, err := indexHeader(headerCells)
	if err != nil {
		return nil, err
	}

	body := csv.NewReader(br)
	body.Comma = delim
	body.LazyQuotes = true
	body.FieldsPerRecord = -1
	body.TrimLeadingSpace = true

	var projects []*model.Project
	for {
		record, err := body.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if isBlank(record) {
			continue
		}

		total := parseInt(cell(record, index[fieldTotal]))
		registered := parseInt(cell(record, index[fieldRegistered]))
		// total/registered列が入れ替わったファイルを補正する
		if registered > total && total > 0 {
			total, registered = registered, total
		}

		projects = append(projects, &model.Project{
			Title:           strings.TrimSpace(cell(record, index[fieldTitle])),
			Location:        strings.TrimSpace(cell(record, index[fieldLocation])),
			Day:             strings.TrimSpace(cell(record, index[fieldDay])),
			HourlyRate:      parseFloat(cell(record, index[fieldHourlyRate])),
			TotalSlots:      total,
			RegisteredSlots: registered,
			Active:          true,
		})
	}

	return projects, nil
}

// detectDelimiter はヘッダ行の出現回数からカンマ・セミコロン・タブを判別する。
func detectDelimiter(header string) rune {
	commas := strings.Count(header, ",")
	tabs := strings.Count(header, "\t")
	semis := strings.Count(header, ";")

	if tabs >= commas && tabs >= semis {
		return '\t'
	}
	if commas >= semis {
		return ','
	}
	return ';'
}

// indexHeader はヘッダセルを正規化し、論理フィールド名→列番号の写像を作る。
// 必須フィールドが見つからない場合はエラーを返す。
func indexHeader(cells []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, raw := range cells {
		key, ok := headerAliases[normalizeHeader(raw)]
		if !ok {
			continue
		}
		index[key] = i
	}

	required := []string{fieldTitle, fieldLocation, fieldDay, fieldHourlyRate, fieldTotal, fieldRegistered}
	for _, field := range required {
		if _, ok := index[field]; !ok {
			return nil, fmt.Errorf("CSV missing required column: %s", field)
		}
	}

	return index, nil
}

// normalizeHeader はヘッダセルを比較可能な形に正規化する。
func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, " ", " ") // NBSP
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.Join(strings.Fields(h), " ")
	return h
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseInt は通貨記号・桁区切りを除去して整数を読む。読めない場合は0。
func parseInt(s string) int {
	s = cleanNumeric(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseFloat は通貨記号・桁区切りを除去して小数を読む。読めない場合は0。
func parseFloat(s string) float64 {
	s = cleanNumeric(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func cleanNumeric(s string) string {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}
