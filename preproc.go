/*
Copyright © 2026 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

package oceandrift

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/oceandrift/fields"
)

// inDateFormat is the format of date-stamped input directories and
// files.
const inDateFormat = "20060102"

// readNC reads a whole netCDF variable into a dense array with the
// variable's trailing two dimensions as its shape; leading length-one
// record and depth dimensions are squeezed away.
func readNC(ff *cdf.File, varName string) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(varName)
	if len(dims) == 0 {
		return nil, fmt.Errorf("oceandrift: preprocessor: variable %v not in file", varName)
	}
	for len(dims) > 2 && dims[0] <= 1 {
		dims = dims[1:]
	}
	r := ff.Reader(varName, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("oceandrift: preprocessor reading %s: %v", varName, err)
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []float64:
		copy(data.Elements, b)
	default:
		return nil, fmt.Errorf("oceandrift: preprocessor: variable %s has unsupported type", varName)
	}
	return data, nil
}

func openNC(path string) (*os.File, *cdf.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ff, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, ff, nil
}

// HYCOMPreprocessor transcodes daily HYCOM current files into velocity
// day files. The input directory holds one YYYYMMDD directory per day,
// each containing one netCDF file per depth level named
// hycom_YYYYMMDD_depth<D>m.nc with variables u, v, Longitude and
// Latitude.
type HYCOMPreprocessor struct {
	InputDir  string
	OutputDir string
	BaseDate  time.Time
	Depths    []float64
	Log       logrus.FieldLogger
}

// NewHYCOMPreprocessor returns a preprocessor with the standard depth
// levels.
func NewHYCOMPreprocessor(inputDir, outputDir string, base time.Time) *HYCOMPreprocessor {
	return &HYCOMPreprocessor{
		InputDir:  inputDir,
		OutputDir: outputDir,
		BaseDate:  base,
		Depths:    append([]float64(nil), fields.DefaultDepths...),
		Log:       logrus.StandardLogger(),
	}
}

var (
	dateDirPattern   = regexp.MustCompile(`^\d{8}$`)
	depthFilePattern = regexp.MustCompile(`^hycom_\d{8}_depth(\d+(?:\.\d+)?)m\.nc$`)
)

// Run converts every input day and writes the day files and the
// metadata document.
func (h *HYCOMPreprocessor) Run() error {
	entries, err := os.ReadDir(h.InputDir)
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() && dateDirPattern.MatchString(e.Name()) {
			dates = append(dates, e.Name())
		}
	}
	sort.Strings(dates)
	if len(dates) == 0 {
		return fmt.Errorf("oceandrift: preprocessor: no date directories in %s", h.InputDir)
	}
	if err := os.MkdirAll(h.OutputDir, 0o755); err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}

	meta := &fields.VelocityMetadata{Depths: h.Depths}
	for _, dateStr := range dates {
		date, err := time.Parse(inDateFormat, dateStr)
		if err != nil {
			continue
		}
		day, err := h.convertDay(dateStr, date)
		if err != nil {
			return err
		}
		if len(meta.Days) == 0 {
			meta.BoundingBox = boundingBoxOf(day.Lon, day.Lat)
		}
		out := filepath.Join(h.OutputDir, fmt.Sprintf("currents_%s.bin", dateStr))
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("oceandrift: preprocessor: %v", err)
		}
		err = fields.WriteVelocityDay(f, day)
		f.Close()
		if err != nil {
			return fmt.Errorf("oceandrift: preprocessor writing %s: %v", out, err)
		}
		meta.Days = append(meta.Days, fields.DayEntry{
			DayOffset: int(date.Sub(h.BaseDate).Hours() / 24),
			Year:      date.Year(),
			Month:     int(date.Month()),
			Day:       date.Day(),
			DateStr:   dateStr,
		})
		h.Log.WithFields(logrus.Fields{"date": dateStr}).Info("converted day")
	}

	mf, err := os.Create(filepath.Join(h.OutputDir, "currents_metadata.toml"))
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	defer mf.Close()
	return fields.WriteVelocityMetadata(mf, meta)
}

// convertDay stacks the per-depth files for one date into a single
// day record. Missing depth levels are filled with land sentinels.
func (h *HYCOMPreprocessor) convertDay(dateStr string, date time.Time) (*fields.VelocityDay, error) {
	dir := filepath.Join(h.InputDir, dateStr)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	byDepth := make(map[float64]string)
	for _, e := range entries {
		if m := depthFilePattern.FindStringSubmatch(e.Name()); m != nil {
			d, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				byDepth[d] = filepath.Join(dir, e.Name())
			}
		}
	}
	if len(byDepth) == 0 {
		return nil, fmt.Errorf("oceandrift: preprocessor: no depth files for %s", dateStr)
	}

	day := &fields.VelocityDay{
		NDepth: len(h.Depths),
		Year:   date.Year(), Month: int(date.Month()), Day: date.Day(),
	}
	for di, depth := range h.Depths {
		path, ok := byDepth[depth]
		if !ok {
			continue
		}
		f, ff, err := openNC(path)
		if err != nil {
			return nil, fmt.Errorf("oceandrift: preprocessor opening %s: %v", path, err)
		}
		u, err := readNC(ff, "u")
		if err == nil {
			var v *sparse.DenseArray
			if v, err = readNC(ff, "v"); err == nil {
				if day.Lon == nil {
					if day.Lon, err = readNC(ff, "Longitude"); err == nil {
						day.Lat, err = readNC(ff, "Latitude")
					}
				}
				if err == nil {
					if day.U == nil {
						day.NLat, day.NLon = u.Shape[0], u.Shape[1]
						day.U = landFilled(day.NDepth, day.NLat, day.NLon)
						day.V = landFilled(day.NDepth, day.NLat, day.NLon)
					}
					off := di * day.NLat * day.NLon
					copy(day.U.Elements[off:off+len(u.Elements)], u.Elements)
					copy(day.V.Elements[off:off+len(v.Elements)], v.Elements)
				}
			}
		}
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("oceandrift: preprocessor reading %s: %v", path, err)
		}
	}
	if day.U == nil {
		return nil, fmt.Errorf("oceandrift: preprocessor: no usable depth files for %s", dateStr)
	}
	return day, nil
}

// landFilled returns an array initialized to NaN so unfilled depth
// planes read as land.
func landFilled(shape ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	for i := range a.Elements {
		a.Elements[i] = math.NaN()
	}
	return a
}

func boundingBoxOf(lon, lat *sparse.DenseArray) fields.BoundingBox {
	bb := fields.BoundingBox{
		North: math.Inf(-1), South: math.Inf(1),
		East: math.Inf(-1), West: math.Inf(1),
	}
	for i, lo := range lon.Elements {
		la := lat.Elements[i]
		if math.IsNaN(lo) || math.IsNaN(la) {
			continue
		}
		bb.West = math.Min(bb.West, lo)
		bb.East = math.Max(bb.East, lo)
		bb.South = math.Min(bb.South, la)
		bb.North = math.Max(bb.North, la)
	}
	return bb
}

// Diffusivity conversion constants: K = C·EKE·T_L, with the
// Lagrangian timescale T_L in seconds.
const (
	ekeScaleC        = 0.1
	lagrangianTLDays = 7.0
	lagrangianTLSecs = lagrangianTLDays * secondsPerDay
)

// EKEPreprocessor transcodes CMEMS eddy-kinetic-energy files into
// diffusivity day files on the velocity grid. Input files are named
// eke_YYYYMMDD.nc with variables eke [m²/s²], longitude and latitude
// (1-D regular axes).
type EKEPreprocessor struct {
	InputDir  string
	OutputDir string

	// GridLon and GridLat are the target cell coordinates, shape
	// {nLat, nLon}, normally taken from a velocity day file.
	GridLon, GridLat *sparse.DenseArray

	Log logrus.FieldLogger
}

// NewEKEPreprocessor returns a preprocessor targeting the grid of the
// given velocity day file.
func NewEKEPreprocessor(inputDir, outputDir, velocityDayFile string) (*EKEPreprocessor, error) {
	f, err := os.Open(velocityDayFile)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	defer f.Close()
	day, err := fields.ReadVelocityDay(f, velocityDayFile)
	if err != nil {
		return nil, err
	}
	return &EKEPreprocessor{
		InputDir:  inputDir,
		OutputDir: outputDir,
		GridLon:   day.Lon,
		GridLat:   day.Lat,
		Log:       logrus.StandardLogger(),
	}, nil
}

var ekeFilePattern = regexp.MustCompile(`^eke_(\d{8})\.nc$`)

// Run writes the coordinate file, one day file per input, and the
// metadata document.
func (p *EKEPreprocessor) Run() error {
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	coords := &fields.GridCoords{
		NLat: p.GridLon.Shape[0], NLon: p.GridLon.Shape[1],
		Lon: p.GridLon, Lat: p.GridLat,
	}
	cf, err := os.Create(filepath.Join(p.OutputDir, "eke_coords.bin"))
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	err = fields.WriteGridCoords(cf, coords)
	cf.Close()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(p.InputDir)
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	var dates []string
	files := make(map[string]string)
	for _, e := range entries {
		if m := ekeFilePattern.FindStringSubmatch(e.Name()); m != nil {
			dates = append(dates, m[1])
			files[m[1]] = filepath.Join(p.InputDir, e.Name())
		}
	}
	sort.Strings(dates)

	for _, dateStr := range dates {
		if err := p.convertDay(dateStr, files[dateStr]); err != nil {
			return err
		}
		p.Log.WithFields(logrus.Fields{"date": dateStr}).Info("converted day")
	}

	mf, err := os.Create(filepath.Join(p.OutputDir, "eke_metadata.toml"))
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	defer mf.Close()
	return fields.WriteDiffusivityMetadata(mf, &fields.DiffusivityMetadata{
		TotalDays: len(dates),
		Dates:     dates,
	})
}

func (p *EKEPreprocessor) convertDay(dateStr, path string) error {
	f, ff, err := openNC(path)
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor opening %s: %v", path, err)
	}
	defer f.Close()

	eke, err := readNC(ff, "eke")
	if err != nil {
		return err
	}
	srcLon, err := readNC(ff, "longitude")
	if err != nil {
		return err
	}
	srcLat, err := readNC(ff, "latitude")
	if err != nil {
		return err
	}

	date, err := time.Parse(inDateFormat, dateStr)
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: bad date %q", dateStr)
	}

	nLat, nLon := p.GridLon.Shape[0], p.GridLon.Shape[1]
	day := &fields.DiffusivityDay{
		Year: date.Year(), Month: int(date.Month()), Day: date.Day(),
		K: sparse.ZerosDense(nLat, nLon),
	}
	for i := range day.K.Elements {
		lo, la := p.GridLon.Elements[i], p.GridLat.Elements[i]
		if math.IsNaN(lo) || math.IsNaN(la) {
			day.K.Elements[i] = math.NaN()
			continue
		}
		v := nearestAxisValue(eke, srcLon.Elements, srcLat.Elements, lo, la)
		if math.IsNaN(v) {
			day.K.Elements[i] = math.NaN()
			continue
		}
		k := ekeScaleC * v * lagrangianTLSecs
		if k < fields.KMin {
			k = fields.KMin
		} else if k > fields.KMax {
			k = fields.KMax
		}
		day.K.Elements[i] = k
	}

	out := filepath.Join(p.OutputDir, fmt.Sprintf("eke_%s.bin", dateStr))
	of, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("oceandrift: preprocessor: %v", err)
	}
	defer of.Close()
	return fields.WriteDiffusivityDay(of, day)
}

// nearestAxisValue samples a regular-axis field at the axis indices
// nearest (lon, lat).
func nearestAxisValue(data *sparse.DenseArray, axLon, axLat []float64, lon, lat float64) float64 {
	j := nearestIndex(axLon, lon)
	i := nearestIndex(axLat, lat)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return data.Get(i, j)
}

func nearestIndex(axis []float64, v float64) int {
	if len(axis) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(axis, v)
	if i == 0 {
		return 0
	}
	if i == len(axis) {
		return len(axis) - 1
	}
	if v-axis[i-1] <= axis[i]-v {
		return i - 1
	}
	return i
}
