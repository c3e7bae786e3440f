package portal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// planTableID matches the curriculum plan table the page names with a
// numeric suffix.
var planTableID = regexp.MustCompile(`^planInfoTable\d+$`)

// presentationAttrs are stripped from table cells during cleanup; they only
// carry page styling the model does not need.
var presentationAttrs = []string{"style", "width", "align", "class", "id", "bgcolor"}

// GradeTable is the grade grid as ordered records.
type GradeTable struct {
	Headers []string
	Rows    [][]string
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseGrades extracts the grade table from the history-grade page.
func ParseGrades(html string) (*GradeTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing grades page: %w", err)
	}

	table := doc.Find("div.grid table").First()
	if table.Length() == 0 {
		return nil, errors.New("未找到成绩表格")
	}

	result := &GradeTable{}
	table.Find("tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		result.Headers = append(result.Headers, collapseWhitespace(th.Text()))
	})

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		var row []string
		cells.Each(func(j int, td *goquery.Selection) {
			if j < len(result.Headers) {
				row = append(row, collapseWhitespace(td.Text()))
			}
		})
		if len(row) > 0 {
			result.Rows = append(result.Rows, row)
		}
	})

	return result, nil
}

// cleanTable strips scripts, empty rows, presentation attributes, and
// redundant whitespace from a table in place.
func cleanTable(table *goquery.Selection) {
	table.Find("script").Remove()

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if strings.TrimSpace(tr.Text()) == "" {
			tr.Remove()
			return
		}
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			for _, attr := range presentationAttrs {
				cell.RemoveAttr(attr)
			}
			text := collapseWhitespace(cell.Text())
			if text == "" {
				cell.Remove()
				return
			}
			cell.SetText(text)
		})
	})
}

// CleanPlanTable extracts and cleans the curriculum plan table, returning it
// as a compact HTML fragment.
func CleanPlanTable(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing plan page: %w", err)
	}

	var target *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if planTableID.MatchString(table.AttrOr("id", "")) {
			target = table
			return false
		}
		return true
	})
	if target == nil {
		return "", errors.New("未找到培养计划表格")
	}

	cleanTable(target)
	out, err := goquery.OuterHtml(target)
	if err != nil {
		return "", fmt.Errorf("rendering plan table: %w", err)
	}
	return collapseWhitespace(out), nil
}

// CleanCompletion cleans every table on the plan-completion page, including
// the chart view, and concatenates them into one compact HTML fragment.
func CleanCompletion(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing completion page: %w", err)
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return "", errors.New("未找到培养计划完成情况表格")
	}

	var sb strings.Builder
	var renderErr error
	tables.Each(func(_ int, table *goquery.Selection) {
		cleanTable(table)
		out, err := goquery.OuterHtml(table)
		if err != nil {
			renderErr = err
			return
		}
		sb.WriteString(out)
	})
	if renderErr != nil {
		return "", fmt.Errorf("rendering completion tables: %w", renderErr)
	}
	return collapseWhitespace(sb.String()), nil
}
