// Package sqlite provides SQLite database writing for identification results
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	_ "github.com/mattn/go-sqlite3"
)

// Date format for RunTable (ISO 8601)
const runDateFormat = "2006-01-02 15:04:05"

// RunInfo describes the run a result set came from.
type RunInfo struct {
	QueryFile       string
	LibraryFile     string
	PPMTolerance    float64
	PrecursorWindow float64
	MinMatchedPeaks int
}

// Writer handles writing result sets to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	resultStmt *sql.Stmt
	runID      int64
	closed     bool
}

// NewWriter creates a new SQLite writer and records the run it belongs to
func NewWriter(outputPath string, info RunInfo) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.insertRun(info); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId INTEGER PRIMARY KEY AUTOINCREMENT,
		CreationDate TEXT,
		QueryFile TEXT,
		LibraryFile TEXT,
		PPMTolerance DOUBLE,
		PrecursorWindow DOUBLE,
		MinMatchedPeaks INTEGER
	);

	CREATE TABLE IF NOT EXISTS ResultTable (
		ResultId INTEGER PRIMARY KEY AUTOINCREMENT,
		RunId INTEGER REFERENCES RunTable(RunId),
		Scan INTEGER,
		PrecursorMZ DOUBLE,
		CompensationVoltage DOUBLE,
		CosineScore DOUBLE,
		IonCount DOUBLE,
		Compound TEXT,
		CompoundMZ TEXT,
		Adduct TEXT,
		Formula TEXT,
		MaccScore DOUBLE,
		MatchedPeaks INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_result_scan ON ResultTable(RunId, Scan);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

func (w *Writer) insertRun(info RunInfo) error {
	res, err := w.db.Exec(`
		INSERT INTO RunTable (CreationDate, QueryFile, LibraryFile, PPMTolerance, PrecursorWindow, MinMatchedPeaks)
		VALUES (?, ?, ?, ?, ?, ?)
	`, time.Now().Format(runDateFormat), info.QueryFile, info.LibraryFile,
		info.PPMTolerance, info.PrecursorWindow, info.MinMatchedPeaks)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	w.runID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.resultStmt, err = w.db.Prepare(`
		INSERT INTO ResultTable (
			RunId, Scan, PrecursorMZ, CompensationVoltage, CosineScore, IonCount,
			Compound, CompoundMZ, Adduct, Formula, MaccScore, MatchedPeaks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result statement: %w", err)
	}

	return nil
}

// RunID returns the id of the run row written by this writer.
func (w *Writer) RunID() int64 {
	return w.runID
}

// WriteResult writes a single result record to the database
func (w *Writer) WriteResult(r core.Result) error {
	return w.insert(w.resultStmt, r)
}

// WriteResultSet writes every record of rs inside one transaction
func (w *Writer) WriteResultSet(rs *core.ResultSet) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(w.resultStmt)
	defer stmt.Close()

	for _, r := range rs.Records {
		if err := w.insert(stmt, r); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

func (w *Writer) insert(stmt *sql.Stmt, r core.Result) error {
	// Handle optional compensation voltage
	var cv interface{} = nil
	if r.CompensationVoltage != nil {
		cv = *r.CompensationVoltage
	}

	_, err := stmt.Exec(
		w.runID,        // RunId
		r.ScanID,       // Scan
		r.PrecursorMZ,  // PrecursorMZ
		cv,             // CompensationVoltage
		r.CosineScore,  // CosineScore
		r.IonCount,     // IonCount
		r.Compound,     // Compound
		r.CompoundMZ,   // CompoundMZ
		r.Adduct,       // Adduct
		r.Formula,      // Formula
		r.MACCScore,    // MaccScore
		r.MatchedPeaks, // MatchedPeaks
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for scan %d: %w", r.ScanID, err)
	}

	return nil
}

// Finalize closes prepared statements and the database
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.resultStmt != nil {
		w.resultStmt.Close()
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
