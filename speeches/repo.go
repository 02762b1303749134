package speeches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"diarscribe/align"
)

// segmentsPerInsert keeps multi-row inserts under SQLite's bound variable limit.
const segmentsPerInsert = 500

const schema = `
	PRAGMA busy_timeout       = 10000;
	PRAGMA journal_mode       = WAL;
	PRAGMA journal_size_limit = 200000000;
	PRAGMA synchronous        = NORMAL;
	PRAGMA foreign_keys       = ON;
	PRAGMA temp_store         = MEMORY;
	PRAGMA cache_size         = -16000;

	create table if not exists speeches (
		id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
		name text not null,
		blake3_hash text not null unique,
		is_transcribed integer default 0
	);

	create table if not exists segments (
		id integer not null,
		speech_id integer not null references speeches (id) on delete cascade,
		speaker text not null,
		text text not null,
		start_ms integer not null,
		end_ms integer not null,
		primary key (id, speech_id)
	);`

type (
	SQLiteRepo struct {
		db *sql.DB
	}
)

// OpenSQLite opens the database file at path and creates the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

func NewSQLiteRepo(db *sql.DB) SQLiteRepo {
	return SQLiteRepo{db}
}

func (r SQLiteRepo) GetSpeech(ctx context.Context, id int64) (Speech, error) {
	res, err := r.scanSpeech(r.db.QueryRowContext(
		ctx,
		"select id, name, blake3_hash, is_transcribed from speeches where id = $1",
		id,
	))
	if err != nil {
		return res, fmt.Errorf("get speech %d: %w", id, err)
	}
	return res, nil
}

func (r SQLiteRepo) GetSpeechByHash(ctx context.Context, blake3Hash string) (Speech, error) {
	res, err := r.scanSpeech(r.db.QueryRowContext(
		ctx,
		"select id, name, blake3_hash, is_transcribed from speeches where blake3_hash = $1",
		blake3Hash,
	))
	if err != nil {
		return res, fmt.Errorf("get speech by hash: %w", err)
	}
	return res, nil
}

func (r SQLiteRepo) ListSpeeches(ctx context.Context) ([]Speech, error) {
	rows, err := r.db.QueryContext(ctx, "select id, name, blake3_hash, is_transcribed from speeches order by id")
	if err != nil {
		return nil, fmt.Errorf("listing speeches: %w", err)
	}
	defer rows.Close()

	res := []Speech{}
	for rows.Next() {
		s, err := r.scanSpeech(rows)
		if err != nil {
			return nil, fmt.Errorf("listing speeches: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing speeches: %w", err)
	}
	return res, nil
}

func (r SQLiteRepo) CreateSpeech(ctx context.Context, name string, blake3Hash string) (Speech, error) {
	res := Speech{
		Name:       name,
		Blake3Hash: blake3Hash,
	}

	var isTranscribed uint8
	err := r.db.
		QueryRowContext(
			ctx,
			"insert into speeches (name, blake3_hash) values ($1, $2) on conflict do nothing returning id, is_transcribed",
			name,
			blake3Hash,
		).
		Scan(&res.ID, &isTranscribed)
	if errors.Is(err, sql.ErrNoRows) {
		// Someone registered the same recording first.
		return r.GetSpeechByHash(ctx, blake3Hash)
	}
	if err != nil {
		return res, fmt.Errorf("persisting speech into sqlite: %w", err)
	}

	res.IsTranscribed = isTranscribed == 1
	return res, nil
}

// InsertSegments replaces the speech's segments and marks it transcribed.
func (r SQLiteRepo) InsertSegments(ctx context.Context, speechID int64, segments []align.Segment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inserting segments: begin trx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from segments where speech_id = $1", speechID)
	if err != nil {
		return fmt.Errorf("inserting segments: clearing previous segments: %w", err)
	}

	for from := 0; from < len(segments); from += segmentsPerInsert {
		to := min(from+segmentsPerInsert, len(segments))
		if err := r.insertSegments(ctx, tx, speechID, from, segments[from:to]); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
		update speeches
		set is_transcribed = 1
		where id = $1
	`, speechID)
	if err != nil {
		return fmt.Errorf("updating speech is_transcribed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating speech %d: %w", speechID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inserting segments: commiting: %w", err)
	}
	log.WithFields(log.Fields{"speech_id": speechID, "segments": len(segments)}).Debug("segments committed")
	return nil
}

func (r SQLiteRepo) insertSegments(ctx context.Context, tx *sql.Tx, speechID int64, firstID int, segments []align.Segment) error {
	var b strings.Builder
	b.WriteString(`insert into segments (
		id,
		speech_id,
		speaker,
		text,
		start_ms,
		end_ms) values `)

	args := make([]any, 0, 6*len(segments))
	for n, s := range segments {
		if n > 0 {
			b.WriteString(", ")
		}
		p := n * 6
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", p+1, p+2, p+3, p+4, p+5, p+6)
		args = append(args, firstID+n, speechID, s.Speaker, s.Text, toMs(s.Timestamp.Start), toMs(s.Timestamp.End))
	}

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("inserting segments: %w", err)
	}
	return nil
}

func (r SQLiteRepo) ListSegments(ctx context.Context, speechID int64) ([]align.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		select speaker, text, start_ms, end_ms
		from segments
		where speech_id = $1
		order by id
	`, speechID)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	defer rows.Close()

	res := []align.Segment{}
	for rows.Next() {
		var (
			s              align.Segment
			startMs, endMs int64
		)
		if err := rows.Scan(&s.Speaker, &s.Text, &startMs, &endMs); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		s.Timestamp.Start = fromMs(startMs)
		s.Timestamp.End = fromMs(endMs)
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r SQLiteRepo) scanSpeech(row scanner) (Speech, error) {
	var (
		res           Speech
		isTranscribed sql.NullInt64
	)
	err := row.Scan(&res.ID, &res.Name, &res.Blake3Hash, &isTranscribed)
	if errors.Is(err, sql.ErrNoRows) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	res.IsTranscribed = isTranscribed.Int64 == 1
	return res, nil
}

func toMs(sec float64) int64 {
	return decimal.NewFromFloat(sec).Shift(3).Round(0).IntPart()
}

func fromMs(ms int64) float64 {
	f, _ := decimal.New(ms, -3).Float64()
	return f
}
