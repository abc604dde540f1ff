package search

import (
	"bufio"
	"io"
	"strings"
)

// ParseMarkdown reads a Markdown FAQ. Two shapes are understood and may be
// mixed:
//
//   - a heading (any level) is a question; the text up to the next heading
//     or table is its answer, paragraphs separated by a blank line;
//   - a table row "| question | answer |" is one entry. The header row of a
//     table (the row right before the |---| separator) is skipped.
func ParseMarkdown(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		out     []Entry
		q       string
		paras   []string
		para    []string
		pending []string // table row that may turn out to be a header
	)
	flushPara := func() {
		if len(para) > 0 {
			paras = append(paras, strings.Join(para, " "))
			para = nil
		}
	}
	flushEntry := func() {
		flushPara()
		if q != "" && len(paras) > 0 {
			out = append(out, Entry{Question: q, Answer: strings.Join(paras, "\n\n")})
		}
		q, paras = "", nil
	}
	flushRow := func() {
		if len(pending) >= 2 {
			out = append(out, Entry{Question: pending[0], Answer: strings.Join(pending[1:], " ")})
		}
		pending = nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if isTableRow(line) {
			flushEntry() // a table ends the current heading section
			cells, sep := tableCells(line)
			switch {
			case sep:
				pending = nil // header
			case pending != nil:
				flushRow()
				pending = cells
			default:
				pending = cells
			}
			continue
		}
		flushRow()

		switch {
		case strings.HasPrefix(line, "#"):
			flushEntry()
			q = strings.TrimSpace(strings.TrimLeft(line, "#"))
		case line == "":
			flushPara()
		case q != "":
			para = append(para, line)
		}
	}
	flushRow()
	flushEntry()
	return out, sc.Err()
}

func isTableRow(line string) bool {
	return len(line) > 1 && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}

// tableCells returns the non-empty cells of a row and whether the row is a
// |---|:---:| separator.
func tableCells(line string) (cells []string, separator bool) {
	separator = true
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":-") != "" {
			separator = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells, separator
}
