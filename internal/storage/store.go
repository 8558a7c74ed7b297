package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/sim"
)

var ErrNoRun = errors.New("storage: run not found")

// Store keeps one directory per run holding metadata.json, series.csv and
// events.json.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	ForceMode  string             `json:"force_mode"`
	Steps      int                `json:"steps"`
	Bodies     int                `json:"bodies"`
	Events     int                `json:"events"`
	Drift      float64            `json:"energy_drift"`
	Metrics    map[string]float64 `json:"metrics"`
	EventKinds map[string]int     `json:"event_kinds,omitempty"`
}

var seriesHeader = []string{
	"tick", "time", "bodies", "disk_particles", "mass",
	"kinetic", "potential", "energy", "momentum_x", "momentum_y", "angular_momentum",
}

// Save writes a finished run and returns its id. preset may be empty.
func (s *Store) Save(preset string, cfg sim.Config, result *sim.Result) (string, error) {
	name := preset
	if name == "" {
		name = "custom"
	}
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixMilli())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Preset:     preset,
		Timestamp:  now,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		ForceMode:  string(cfg.ForceMode),
		Steps:      result.StepsTaken,
		Events:     len(result.Events),
		Drift:      result.EnergyDrift,
		Metrics:    result.Metrics,
		EventKinds: make(map[string]int),
	}
	if n := len(result.Samples); n > 0 {
		meta.Bodies = result.Samples[n-1].Bodies
	}
	for _, e := range result.Events {
		meta.EventKinds[string(e.Kind)]++
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, "series.csv"), result.Samples); err != nil {
		return "", err
	}
	evs := result.Events
	if evs == nil {
		evs = []events.Event{}
	}
	if err := writeJSON(filepath.Join(runDir, "events.json"), evs); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSeries(path string, samples []sim.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(seriesHeader); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, st := range samples {
		row := []string{
			strconv.FormatUint(st.Tick, 10),
			ff(st.Time),
			strconv.Itoa(st.Bodies),
			strconv.Itoa(st.DiskParticles),
			ff(st.Mass),
			ff(st.Kinetic),
			ff(st.Potential),
			ff(st.Energy()),
			ff(st.MomentumX),
			ff(st.MomentumY),
			ff(st.AngularMomentum),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int { return b.Timestamp.Compare(a.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Latest returns the id of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrNoRun
	}
	return runs[0].ID, nil
}

// LoadSeries reads series.csv back into samples. Energy is recomputed from
// its parts, so HasEnergy is set.
func (s *Store) LoadSeries(runID string) ([]sim.Stats, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(seriesHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Stats{}, nil
	}

	out := make([]sim.Stats, 0, len(records)-1)
	for _, rec := range records[1:] {
		var st sim.Stats
		var perr error
		num := func(i int) float64 {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil && perr == nil {
				perr = err
			}
			return v
		}
		st.Tick = uint64(num(0))
		st.Time = num(1)
		st.Bodies = int(num(2))
		st.DiskParticles = int(num(3))
		st.Mass = num(4)
		st.Kinetic = num(5)
		st.Potential = num(6)
		st.MomentumX = num(8)
		st.MomentumY = num(9)
		st.AngularMomentum = num(10)
		st.HasEnergy = true
		if perr != nil {
			return nil, fmt.Errorf("storage: series row %v: %w", rec, perr)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) LoadEvents(runID string) ([]events.Event, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "events.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	if err != nil {
		return nil, err
	}
	var evs []events.Event
	if err := json.Unmarshal(data, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}

type ExportData struct {
	Preset   string             `json:"preset"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Samples  []sim.Stats        `json:"samples"`
	Events   []events.Event     `json:"events"`
	Metrics  map[string]float64 `json:"metrics"`
}

// Export writes a run as a single JSON document.
func Export(w io.Writer, preset string, cfg sim.Config, result *sim.Result) error {
	data := ExportData{
		Preset:   preset,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Steps:    result.StepsTaken,
		Samples:  result.Samples,
		Events:   result.Events,
		Metrics:  result.Metrics,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
