package logging

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"snakedqn/internal/env"
)

// Logger writes per-episode metrics as CSV and JSON lines
type Logger struct {
	csvPath     string
	jsonPath    string
	csvFile     *os.File
	csvWriter   *csv.Writer
	jsonFile    *os.File
	initialized bool
}

// NewLogger creates a new logger
func NewLogger(csvPath, jsonPath string) (*Logger, error) {
	l := &Logger{
		csvPath:  csvPath,
		jsonPath: jsonPath,
	}

	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(csvPath), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0755); err != nil {
		return nil, err
	}

	return l, nil
}

// Init opens the log files. When appending, existing files are kept and the
// CSV header is only written to an empty file.
func (l *Logger) Init(appendMode bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	var err error
	l.csvFile, err = os.OpenFile(l.csvPath, flags, 0644)
	if err != nil {
		return err
	}
	l.csvWriter = csv.NewWriter(l.csvFile)

	info, err := l.csvFile.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		if err := l.csvWriter.Write(csvHeader); err != nil {
			return err
		}
		l.csvWriter.Flush()
	}

	l.jsonFile, err = os.OpenFile(l.jsonPath, flags, 0644)
	if err != nil {
		return err
	}

	l.initialized = true
	return nil
}

// Close closes all log files
func (l *Logger) Close() {
	if l.csvWriter != nil {
		l.csvWriter.Flush()
	}
	if l.csvFile != nil {
		l.csvFile.Close()
	}
	if l.jsonFile != nil {
		l.jsonFile.Close()
	}
}

var csvHeader = []string{
	"episode", "score", "record", "frames", "reward", "death", "cycles",
	"length", "epsilon", "explored", "loss", "mean_score", "seed",
}

// EpisodeRecord is one finished training game
type EpisodeRecord struct {
	Episode   int     `json:"episode"`
	Score     int     `json:"score"`
	Record    int     `json:"record"`
	Frames    int     `json:"frames"`
	Reward    float64 `json:"reward"`
	Death     string  `json:"death"`
	Cycles    int     `json:"cycles"`
	Length    int     `json:"length"`
	Epsilon   int     `json:"epsilon"`
	Explored  int     `json:"explored"`
	Loss      float64 `json:"loss"`
	MeanScore float64 `json:"mean_score"`
	Seed      uint64  `json:"seed"`
}

// NewEpisodeRecord fills a record from the environment's episode stats
func NewEpisodeRecord(episode, record int, stats env.EpisodeStats) EpisodeRecord {
	return EpisodeRecord{
		Episode: episode,
		Score:   stats.Score,
		Record:  record,
		Frames:  stats.Frames,
		Reward:  stats.Reward,
		Death:   stats.Death.String(),
		Cycles:  stats.Cycles,
		Length:  stats.Length,
		Seed:    stats.Seed,
	}
}

func (r EpisodeRecord) row() []string {
	return []string{
		strconv.Itoa(r.Episode),
		strconv.Itoa(r.Score),
		strconv.Itoa(r.Record),
		strconv.Itoa(r.Frames),
		fmt.Sprintf("%.2f", r.Reward),
		r.Death,
		strconv.Itoa(r.Cycles),
		strconv.Itoa(r.Length),
		strconv.Itoa(r.Epsilon),
		strconv.Itoa(r.Explored),
		fmt.Sprintf("%.6f", r.Loss),
		fmt.Sprintf("%.3f", r.MeanScore),
		strconv.FormatUint(r.Seed, 10),
	}
}

// LogEpisode appends one episode to the CSV and JSONL files
func (l *Logger) LogEpisode(r EpisodeRecord) error {
	if !l.initialized {
		return nil
	}

	if err := l.csvWriter.Write(r.row()); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	l.csvWriter.Flush()
	if err := l.csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	jsonLine, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := l.jsonFile.Write(append(jsonLine, '\n')); err != nil {
		return fmt.Errorf("failed to write json line: %w", err)
	}
	return nil
}

// PrintEpisode writes the per-game progress line
func PrintEpisode(w io.Writer, games, score, record int) {
	fmt.Fprintf(w, "Game: %d - Score: %d - Record: %d\n", games, score, record)
}

// PrintAggregate writes a one-line summary of evaluation results
func PrintAggregate(w io.Writer, label string, agg env.AggregatedStats) {
	fmt.Fprintf(w, "%s | Episodes: %d | Score: %.2f ± %.2f (max %d) | Frames: %.1f | Deaths: W=%d S=%d St=%d F=%d\n",
		label, agg.NumEpisodes, agg.ScoreMean, agg.ScoreStd, agg.ScoreMax, agg.FramesMean,
		agg.DeathCounts[env.DeathWall], agg.DeathCounts[env.DeathSelf],
		agg.DeathCounts[env.DeathStall], agg.DeathCounts[env.DeathBoardFull])
}

// ReadJSONL loads episode records written by LogEpisode
func ReadJSONL(path string) ([]EpisodeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []EpisodeRecord
	dec := json.NewDecoder(f)
	for {
		var r EpisodeRecord
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		records = append(records, r)
	}
	return records, nil
}
