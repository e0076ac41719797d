package maps

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/forest-bda/internal/landscape"
)

// CellValue maps an active cell to its pixel value. Inactive cells are
// always written as 0.
type CellValue func(c *landscape.Cell) int

// WriteGrid writes one raster as an ESRI ASCII grid, row 0 first. Paths
// ending in .zst are zstd-compressed.
func WriteGrid(path string, g *landscape.Grid, value CellValue) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var out io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return err
		}
		out = enc
	}

	w := bufio.NewWriterSize(out, 64*1024)
	if err := writeASCII(w, g, value); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}

func writeASCII(w *bufio.Writer, g *landscape.Grid, value CellValue) error {
	fmt.Fprintf(w, "ncols %d\n", g.Cols)
	fmt.Fprintf(w, "nrows %d\n", g.Rows)
	fmt.Fprintf(w, "xllcorner 0\n")
	fmt.Fprintf(w, "yllcorner 0\n")
	fmt.Fprintf(w, "cellsize %g\n", g.CellLength)

	buf := make([]byte, 0, 8)
	for r := 0; r < g.Rows; r++ {
		for col := 0; col < g.Cols; col++ {
			v := 0
			if c := g.Cells[r*g.Cols+col]; c.Active {
				v = value(c)
			}
			if col > 0 {
				w.WriteByte(' ')
			}
			buf = strconv.AppendInt(buf[:0], int64(v), 10)
			w.Write(buf)
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Raster is a decoded grid.
type Raster struct {
	Cols, Rows int
	CellSize   float64
	Values     [][]int // [row][col]
}

// ReadGrid loads a grid written by WriteGrid.
func ReadGrid(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		in = dec
	}

	ras := &Raster{}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	header := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if header < 5 {
			header++
			switch strings.ToLower(fields[0]) {
			case "ncols":
				ras.Cols, err = strconv.Atoi(fields[1])
			case "nrows":
				ras.Rows, err = strconv.Atoi(fields[1])
			case "cellsize":
				ras.CellSize, err = strconv.ParseFloat(fields[1], 64)
			}
			if err != nil {
				return nil, fmt.Errorf("%s header: %w", path, err)
			}
			continue
		}
		row := make([]int, len(fields))
		for i, s := range fields {
			if row[i], err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, len(ras.Values), err)
			}
		}
		ras.Values = append(ras.Values, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(ras.Values) != ras.Rows {
		return nil, fmt.Errorf("%s: got %d rows want %d", path, len(ras.Values), ras.Rows)
	}
	return ras, nil
}

// Percent converts a [0, 1] field to the integer percentage written to maps.
// Halves round to even.
func Percent(v float64) int {
	return int(math.RoundToEven(v * 100))
}
