package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/cinefluent/internal/enrich"
	"github.com/MimeLyc/cinefluent/internal/segment"
	"github.com/MimeLyc/cinefluent/internal/subtitle"
)

// ErrNotFound is returned when a subtitle document does not exist.
var ErrNotFound = errors.New("not found")

// Document is a processed subtitle with its cues and segments.
type Document struct {
	ID        string          `json:"id"`
	MovieID   string          `json:"movie_id"`
	Language  string          `json:"language"`
	Title     string          `json:"title,omitempty"`
	Format    subtitle.Format `json:"format"`
	Source    string          `json:"source"`
	JobID     string          `json:"job_id,omitempty"`
	Summary   segment.Summary `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`

	Cues     []enrich.Cue      `json:"-"`
	Segments []segment.Segment `json:"-"`
}

// SaveDocument writes the document, its cues and its segments in one
// transaction. An existing document with the same ID is replaced.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc Document) (err error) {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM learning_segments WHERE subtitle_id = ?`,
		`DELETE FROM subtitle_cues WHERE subtitle_id = ?`,
		`DELETE FROM subtitles WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, doc.ID); err != nil {
			return fmt.Errorf("replace document %s: %w", doc.ID, err)
		}
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO subtitles (
			id, movie_id, language, title, format, source, job_id,
			total_cues, total_segments, duration_seconds, vocabulary_count, avg_difficulty, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.MovieID, doc.Language, doc.Title, string(doc.Format), doc.Source, doc.JobID,
		doc.Summary.TotalCues, doc.Summary.TotalSegments, doc.Summary.DurationSeconds,
		doc.Summary.VocabularyCount, doc.Summary.AvgDifficulty, formatTime(createdAt),
	); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}

	for i, c := range doc.Cues {
		var words []byte
		if words, err = json.Marshal(c.Words); err != nil {
			return fmt.Errorf("encode cue words: %w", err)
		}
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO subtitle_cues (
				subtitle_id, position, cue_index, start_time, end_time, raw_text, text, words_json, difficulty_score
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, i, c.Index, c.Start, c.End, c.RawText, c.Text, string(words), c.DifficultyScore,
		); err != nil {
			return fmt.Errorf("insert cue %d: %w", i, err)
		}
	}

	for i, seg := range doc.Segments {
		var vocab []byte
		if vocab, err = json.Marshal(seg.Vocabulary); err != nil {
			return fmt.Errorf("encode segment vocabulary: %w", err)
		}
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO learning_segments (
				id, subtitle_id, position, start_time, end_time, difficulty_score,
				vocabulary_json, cue_count, first_cue, last_cue, exceeds_window
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, doc.ID, i, seg.StartTime, seg.EndTime, seg.DifficultyScore,
			string(vocab), seg.CueCount, seg.FirstCue, seg.LastCue, boolToInt(seg.ExceedsWindow),
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const documentColumns = `id, movie_id, language, title, format, source, job_id,
	total_cues, total_segments, duration_seconds, vocabulary_count, avg_difficulty, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc       Document
		format    string
		createdAt string
	)
	if err := row.Scan(
		&doc.ID, &doc.MovieID, &doc.Language, &doc.Title, &format, &doc.Source, &doc.JobID,
		&doc.Summary.TotalCues, &doc.Summary.TotalSegments, &doc.Summary.DurationSeconds,
		&doc.Summary.VocabularyCount, &doc.Summary.AvgDifficulty, &createdAt,
	); err != nil {
		return Document{}, err
	}
	doc.Format = subtitle.Format(format)
	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// LoadDocument returns the document header without cues or segments.
func (s *SQLiteStore) LoadDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM subtitles WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("subtitle %s: %w", id, ErrNotFound)
	}
	return doc, err
}

// FindDocuments returns the headers of the processed documents for a movie
// in one language, newest first. No match is an empty slice.
func (s *SQLiteStore) FindDocuments(ctx context.Context, movieID, language string) ([]Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+documentColumns+` FROM subtitles
		 WHERE movie_id = ? AND language = ?
		 ORDER BY created_at DESC, id`,
		movieID, language,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, doc)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) LoadSegments(ctx context.Context, subtitleID string) ([]segment.Segment, error) {
	if _, err := s.LoadDocument(ctx, subtitleID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, start_time, end_time, difficulty_score, vocabulary_json, cue_count, first_cue, last_cue, exceeds_window
		 FROM learning_segments WHERE subtitle_id = ? ORDER BY position`,
		subtitleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]segment.Segment, 0)
	for rows.Next() {
		var (
			seg     segment.Segment
			vocab   string
			exceeds int
		)
		if err := rows.Scan(&seg.ID, &seg.StartTime, &seg.EndTime, &seg.DifficultyScore, &vocab,
			&seg.CueCount, &seg.FirstCue, &seg.LastCue, &exceeds); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vocab), &seg.Vocabulary); err != nil {
			return nil, fmt.Errorf("decode vocabulary for segment %s: %w", seg.ID, err)
		}
		seg.ExceedsWindow = exceeds == 1
		ret = append(ret, seg)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) LoadCues(ctx context.Context, subtitleID string) ([]enrich.Cue, error) {
	if _, err := s.LoadDocument(ctx, subtitleID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cue_index, start_time, end_time, raw_text, text, words_json, difficulty_score
		 FROM subtitle_cues WHERE subtitle_id = ? ORDER BY position`,
		subtitleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]enrich.Cue, 0)
	for rows.Next() {
		var (
			c     enrich.Cue
			words string
		)
		if err := rows.Scan(&c.Index, &c.Start, &c.End, &c.RawText, &c.Text, &words, &c.DifficultyScore); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(words), &c.Words); err != nil {
			return nil, fmt.Errorf("decode words for cue %d: %w", c.Index, err)
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}
