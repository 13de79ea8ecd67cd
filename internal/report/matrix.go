package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kozaktomas/smart-attendance/internal/constants"
)

// Cell is a pre-formatted matrix value, either text or an integer.
type Cell struct {
	Text     string
	Number   int
	IsNumber bool
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{Text: s} }

// Number returns an integer cell.
func Number(n int) Cell { return Cell{Number: n, IsNumber: true} }

func (c Cell) String() string {
	if c.IsNumber {
		return strconv.Itoa(c.Number)
	}
	return c.Text
}

// MarshalJSON encodes numbers as JSON numbers and text as strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.IsNumber {
		return json.Marshal(c.Number)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either form.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Number(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cell must be a string or integer: %w", err)
	}
	*c = Text(s)
	return nil
}

// Row is the report line of one student.
type Row struct {
	StudentID   string `json:"student_id"`
	Cells       []Cell `json:"cells"`
	Present     int    `json:"present"`
	WorkingDays int    `json:"working_days"`
	// Percentage is nil when the student had no working days in range.
	Percentage *int `json:"percentage"`
}

// Matrix is the abstract tabular report handed to exporters.
// Header holds the student columns first, then one column per date or month.
type Matrix struct {
	Title  string   `json:"title"`
	Period Period   `json:"period"`
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
	// Dates lists the YYYY-MM-DD date of each per-date column, in header order.
	Dates []string `json:"dates,omitempty"`
}

// Table returns the header and body as strings, ready for a CSV or PDF writer.
func (m *Matrix) Table() (head []string, body [][]string) {
	head = append([]string(nil), m.Header...)
	body = make([][]string, len(m.Rows))
	for i, r := range m.Rows {
		line := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			line[j] = c.String()
		}
		body[i] = line
	}
	return head, body
}

// Percent returns present/total*100 rounded to the nearest integer, nil when total is 0.
func Percent(present, total int) *int {
	if total <= 0 {
		return nil
	}
	p := int(math.Round(float64(present) / float64(total) * 100))
	return &p
}

// FormatPercent renders p as "60%", or N/A when undefined.
func FormatPercent(p *int) string {
	if p == nil {
		return constants.NotAvailable
	}
	return strconv.Itoa(*p) + "%"
}
