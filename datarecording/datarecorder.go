// Package datarecording stores sweep results in an SQLite database, next to
// the CSV table, so that they can be queried without reparsing statistics.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DBSuffix is appended to every database name.
const DBSuffix = ".sqlite3"

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table with given filename
	CreateTable(tableName string, sampleEntry any)

	// DataInsert writes a same-type task into table that already exists
	InsertData(tableName string, entry any)

	// ListTable returns a slice containing names of all tables
	ListTables() []string

	// Flush flushes all the buffered task into database
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a new DataRecorder. The database is written to path with the
// .sqlite3 suffix. An empty path picks a unique name. It panics if the
// database already exists.
func New(path string) DataRecorder {
	w, err := Create(path)
	if err != nil {
		panic(err)
	}

	return w
}

// Create is New that reports failures instead of panicking.
func Create(path string) (DataRecorder, error) {
	w := newWriter(nil)
	w.dbName = path

	if err := w.Init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := newWriter(db)

	atexit.Register(func() { w.Flush() })

	return w
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		buffers:   make(map[string]*buffer),
	}
}

// buffer holds the entries of one table until the next flush.
type buffer struct {
	entryType reflect.Type
	insertSQL string
	entries   []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	dbName     string
	buffers    map[string]*buffer
	batchSize  int
	entryCount int
	closed     bool
}

// Init establishes a connection to the database.
func (w *sqliteWriter) Init() error {
	if w.dbName == "" {
		w.dbName = "cachesweep_" + xid.New().String()
	}

	filename := strings.TrimSuffix(w.dbName, DBSuffix) + DBSuffix

	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	w.DB = db

	return nil
}

// columnType maps the field kinds sweep records use onto SQLite column
// types.
func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.String:
		return "TEXT", true
	case reflect.Bool, reflect.Int, reflect.Int64:
		return "INTEGER", true
	case reflect.Float64:
		return "REAL", true
	default:
		return "", false
	}
}

func columns(entryType reflect.Type) ([]string, error) {
	if entryType.Kind() != reflect.Struct {
		return nil, errors.New("entry is not a struct")
	}

	cols := make([]string, 0, entryType.NumField())

	for i := 0; i < entryType.NumField(); i++ {
		field := entryType.Field(i)
		if !field.IsExported() {
			return nil, fmt.Errorf("field %s of entry is not exported", field.Name)
		}

		sqlType, ok := columnType(field.Type.Kind())
		if !ok {
			return nil, fmt.Errorf("field %s of entry has unsupported type %s",
				field.Name, field.Type)
		}

		cols = append(cols, field.Name+" "+sqlType)
	}

	return cols, nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	entryType := reflect.TypeOf(sampleEntry)

	cols, err := columns(entryType)
	if err != nil {
		panic(err)
	}

	w.mustExecute("CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(cols, ",\n\t") + "\n);")

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(structs.Names(sampleEntry))), ", ")

	w.buffers[tableName] = &buffer{
		entryType: entryType,
		insertSQL: "INSERT INTO " + tableName + " VALUES (" + placeholders + ")",
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	b, exists := w.buffers[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != b.entryType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	b.entries = append(b.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(w.buffers))
	for name := range w.buffers {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

// Flush writes every buffered entry in one transaction.
func (w *sqliteWriter) Flush() {
	if w.entryCount == 0 || w.closed {
		return
	}

	tx, err := w.Begin()
	if err != nil {
		panic(err)
	}

	for _, b := range w.buffers {
		if err := b.writeTo(tx); err != nil {
			_ = tx.Rollback()
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.entryCount = 0
}

func (b *buffer) writeTo(tx *sql.Tx) error {
	if len(b.entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(b.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range b.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	b.entries = nil

	return nil
}

func (w *sqliteWriter) Close() error {
	if w.closed {
		return nil
	}

	w.Flush()
	w.closed = true

	return w.DB.Close()
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
