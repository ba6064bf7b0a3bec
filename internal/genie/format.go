package genie

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var englishPrinter = message.NewPrinter(language.English)

// formatCell renders one result cell. Floating-point columns get thousands
// separators and exactly two decimals, integer columns thousands separators
// only, NULLs the literal string "NULL". Anything unparseable is passed
// through verbatim.
func formatCell(value *string, typeName string) string {
	if value == nil {
		return "NULL"
	}
	switch typeName {
	case "DECIMAL", "DOUBLE", "FLOAT":
		f, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return *value
		}
		return englishPrinter.Sprintf("%.2f", f)
	case "INT", "BIGINT", "LONG":
		n, err := strconv.ParseInt(*value, 10, 64)
		if err != nil {
			return *value
		}
		return englishPrinter.Sprintf("%d", n)
	default:
		return *value
	}
}
