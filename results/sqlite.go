package results

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLite is a Sink that inserts each Result as a row of the table "results", tagged with the name
// of the run.
type SQLite struct {
	db     *sql.DB
	insert *sql.Stmt
	run    string
}

// OpenSQLite opens (or creates) the database at 'path', creating the results table if it does not
// exist. Every Result recorded is tagged with 'run'.
func OpenSQLite(path, run string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open database %q\n", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run TEXT NOT NULL,
			phase TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			dataset TEXT NOT NULL,
			cost REAL NOT NULL,
			class_error REAL,
			sub_costs TEXT
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Failed to create results table\n")
	}

	insert, err := db.Prepare(`
		INSERT INTO results(run, phase, iteration, dataset, cost, class_error, sub_costs)
		VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Failed to prepare insert\n")
	}

	return &SQLite{db: db, insert: insert, run: run}, nil
}

func (s *SQLite) Record(r Result) error {
	var classErr sql.NullFloat64
	if r.HasClassError {
		classErr = sql.NullFloat64{Float64: r.ClassError, Valid: true}
	}

	subs := make([]string, len(r.SubCosts))
	for i, c := range r.SubCosts {
		subs[i] = strconv.FormatFloat(c, 'g', -1, 64)
	}

	_, err := s.insert.Exec(s.run, r.Phase, r.Iteration, r.Set, r.Cost, classErr, strings.Join(subs, ","))
	if err != nil {
		return errors.Wrapf(err, "Inserting result failed\n")
	}

	return nil
}

// Results returns every Result recorded for the run, in insertion order
func (s *SQLite) Results() ([]Result, error) {
	rows, err := s.db.Query(`
		SELECT phase, iteration, dataset, cost, class_error, sub_costs
		FROM results WHERE run = ? ORDER BY id`, s.run)
	if err != nil {
		return nil, errors.Wrapf(err, "Querying results failed\n")
	}

	defer rows.Close()

	var rs []Result
	for rows.Next() {
		var r Result
		var classErr sql.NullFloat64
		var subs string

		if err := rows.Scan(&r.Phase, &r.Iteration, &r.Set, &r.Cost, &classErr, &subs); err != nil {
			return nil, errors.Wrapf(err, "Scanning result failed\n")
		}

		r.ClassError, r.HasClassError = classErr.Float64, classErr.Valid

		if subs != "" {
			for _, v := range strings.Split(subs, ",") {
				c, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "Parsing sub-cost %q failed\n", v)
				}

				r.SubCosts = append(r.SubCosts, c)
			}
		}

		rs = append(rs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "Reading results failed\n")
	}

	return rs, nil
}

func (s *SQLite) Close() error {
	s.insert.Close()
	return s.db.Close()
}
