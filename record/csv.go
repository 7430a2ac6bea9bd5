package record

import "strings"

// CSVDelimiter is the field separator used by the pipe-delimited CSV log
// format; the honeypot's own writer avoids commas because payload bytes are
// rendered as hex and can contain anything else printable.
const CSVDelimiter = "|"

// ParseCSVHeader splits a CSV header line into its column names.
func ParseCSVHeader(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r\n"), CSVDelimiter)
}

// ParseCSVRow splits a CSV data line into a header-keyed map. Extra or
// missing columns compared to header are ignored; the reader is expected to
// only ever see rows matching the header it captured for a given file.
func ParseCSVRow(header []string, line string) map[string]string {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), CSVDelimiter)
	row := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(fields) {
			row[name] = fields[i]
		} else {
			row[name] = ""
		}
	}
	return row
}
