package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses records of the form `sequence[,label]` and returns
// the encoded sequences and the labels. Records without a label get
// label 0. Lines starting with '#' are skipped.
func ReadCSV(rdr io.Reader, a Alphabet) (
	f *Strings,
	labels []float64,
	err error,
) {
	r := csv.NewReader(rdr)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	var lines []string
RECORDS:
	for {
		record, err := r.Read()
		switch err {
		case nil:
			line := strings.TrimSpace(record[0])
			label := 0.
			if len(record) > 1 {
				label, err = strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
				if err != nil {
					// data error
					return nil, nil, fmt.Errorf("record %d: %w", len(lines), err)
				}
			}
			lines = append(lines, line)
			labels = append(labels, label)
		case io.EOF:
			break RECORDS
		default:
			// i/o error
			return nil, nil, err
		}
	}

	f, err = a.Strings(lines)
	if err != nil {
		return nil, nil, err
	}
	return f, labels, nil
}
