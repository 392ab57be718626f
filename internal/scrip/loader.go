package scrip

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Required header columns of the reference file.
const (
	ColSymbols = "Symbols"
	ColSpot    = "Spot"
	ColCurrent = "Current"
	ColNext    = "Next"
)

// Load reads the reference CSV at path.
func Load(path string, logger *zap.Logger) (*Master, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scrip master: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse scrip master %s: %w", path, err)
	}
	logger.Info("loaded scrip master", zap.String("path", path), zap.Int("symbols", m.Len()))
	return m, nil
}

// Parse reads reference rows from r. Columns are located by header name.
func Parse(r io.Reader, logger *zap.Logger) (*Master, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range []string{ColSymbols, ColSpot, ColCurrent, ColNext} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	var rows []Row
	seen := make(map[string]bool)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		symbol := strings.TrimSpace(field(rec, cols[ColSymbols]))
		if symbol == "" {
			continue
		}
		if seen[symbol] {
			logger.Warn("duplicate symbol in scrip master, keeping first", zap.String("symbol", symbol), zap.Int("line", line))
			continue
		}

		row := Row{Symbol: symbol}
		ids := []*int64{&row.Spot, &row.Current, &row.Next}
		for i, name := range []string{ColSpot, ColCurrent, ColNext} {
			id, err := parseSecurityID(field(rec, cols[name]))
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			*ids[i] = id
		}
		seen[symbol] = true
		rows = append(rows, row)
	}
	return NewMaster(rows), nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// parseSecurityID accepts integers and integral floats ("2885.0"); blank is 0.
func parseSecurityID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("invalid security id %q", s)
	}
	return int64(f), nil
}
