package sheetorm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

var cellRefPattern = regexp.MustCompile(`(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)`)

// ShiftFormulaRows moves every relative row reference of an A1 formula by delta.
// Rows anchored with "$", text inside string literals, sheet names and function
// names such as LOG10 are left as they are.
func ShiftFormulaRows(formula string, delta int) string {
	if delta == 0 || formula == "" {
		return formula
	}

	// The tokenizer tells which operands are references but drops quotes and
	// spacing, so the rewrite is applied to the original text.
	parser := efp.ExcelParser()
	var refs []string
	for _, token := range parser.Parse(formula) {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := token.TValue
		if i := strings.LastIndexByte(ref, '!'); i >= 0 {
			ref = ref[i+1:]
		}
		if strings.ContainsAny(ref, "0123456789") {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return formula
	}

	quoted := quotedMask(formula)

	var b strings.Builder
	last := 0
	for _, ref := range refs {
		pos := findRef(formula, ref, last, quoted)
		if pos < 0 {
			continue
		}
		b.WriteString(formula[last:pos])
		b.WriteString(shiftRefRows(ref, delta))
		last = pos + len(ref)
	}
	b.WriteString(formula[last:])

	return b.String()
}

// findRef returns the first unquoted occurrence of ref at or after from that
// stands on its own, or -1
func findRef(formula, ref string, from int, quoted []bool) int {
	for from <= len(formula)-len(ref) {
		i := strings.Index(formula[from:], ref)
		if i < 0 {
			return -1
		}
		pos := from + i
		end := pos + len(ref)
		if !quoted[pos] &&
			(pos == 0 || !isIdentByte(formula[pos-1])) &&
			(end == len(formula) || !isIdentByte(formula[end])) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

// shiftRefRows shifts the relative rows of a single reference such as "C2:E$2"
func shiftRefRows(ref string, delta int) string {
	var b strings.Builder
	last := 0
	for _, m := range cellRefPattern.FindAllStringSubmatchIndex(ref, -1) {
		start, end := m[0], m[1]
		if start > 0 && isIdentByte(ref[start-1]) {
			continue
		}
		if end < len(ref) && isIdentByte(ref[end]) {
			continue
		}
		if m[7] > m[6] { // "$" before the row
			continue
		}

		row, err := strconv.Atoi(ref[m[8]:m[9]])
		if err != nil || row+delta < 1 {
			continue
		}

		b.WriteString(ref[last:m[8]])
		b.WriteString(strconv.Itoa(row + delta))
		last = m[9]
	}
	b.WriteString(ref[last:])

	return b.String()
}

// quotedMask flags the bytes inside double-quoted string literals and
// single-quoted sheet names
func quotedMask(s string) []bool {
	mask := make([]bool, len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case c == quote:
			quote = 0
		}
		mask[i] = quote != 0
	}
	return mask
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
