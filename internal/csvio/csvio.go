// Package csvio reads and writes multi-channel sample data as CSV at the
// input/output boundary. The first row holds channel ids; every following
// row holds one sample per channel. The sampling rate travels out of band.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
)

// ErrNoSamples reports a CSV with a header but no data rows.
var ErrNoSamples = errors.New("csvio: no sample rows")

// Read parses CSV sample data into a buffer at the given rate.
func Read(r io.Reader, sampleRate float64) (*buffer.Buffer, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csvio: header: %w", err)
	}
	ids := append([]string(nil), header...)

	data := make([][]float64, len(ids))
	row := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: row %d: %w", row+1, err)
		}
		row++
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("csvio: row %d column %d: %w", row, i+1, err)
			}
			data[i] = append(data[i], v)
		}
	}
	if row == 0 {
		return nil, ErrNoSamples
	}

	return buffer.New(sampleRate, ids, data)
}

// Write emits the buffer as CSV, one row per sample.
func Write(w io.Writer, buf *buffer.Buffer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(buf.ChannelIDs()); err != nil {
		return fmt.Errorf("csvio: header: %w", err)
	}

	channels := buf.NumChannels()
	record := make([]string, channels)
	for i := range buf.Len() {
		for ch := range channels {
			record[ch] = strconv.FormatFloat(buf.ChannelAt(ch)[i], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csvio: row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
