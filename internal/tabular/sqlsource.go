package tabular

import (
	"context"
	"database/sql"

	// Registers the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/mlog"

	"github.com/fluree/fluree-go/internal/pushdown"
)

// SQLConnection is a hub which deals with SQL tabular connections.
type SQLConnection struct {
	ConnectionString string
	Connected        bool
	DB               *sql.DB
	Logger           mlog.Logger
}

// GetDB returns a singleton database handle, opening it on first use.
func (sc *SQLConnection) GetDB() (*sql.DB, error) {
	if sc.DB == nil {
		db, err := sql.Open("pgx", sc.ConnectionString)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIOError, err, "opening sql connection")
		}

		sc.DB = db
		sc.Connected = true
	}

	return sc.DB, nil
}

// SQLSource is a tabular source over a relational database. Pushdown
// predicates become WHERE clauses and the projection becomes the SELECT list,
// so filtering happens inside the database, not in the operator tree.
type SQLSource struct {
	connection *SQLConnection
	logger     mlog.Logger
}

// NewSQLSource returns a source over the given connection.
func NewSQLSource(connection *SQLConnection) *SQLSource {
	logger := connection.Logger
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &SQLSource{connection: connection, logger: logger}
}

// ScanRowMaps implements Source.
func (s *SQLSource) ScanRowMaps(ctx context.Context, req *ScanRequest) (BatchIterator, error) {
	if req.TimeTravel != nil {
		return nil, apperr.New(apperr.KindUnsupported, "sql source does not support time travel")
	}

	db, err := s.connection.GetDB()
	if err != nil {
		return nil, err
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}

	builder := sqrl.Select(columns...).
		From(req.Table).
		PlaceholderFormat(sqrl.Dollar)

	for _, pred := range req.Predicates {
		builder = builder.Where(predicateToSqlizer(pred))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "building scan query for %q", req.Table)
	}

	s.logger.Debugf("sql scan: %s", query)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "executing scan query for %q", req.Table)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &sqlIterator{rows: rows, batchSize: batchSize}, nil
}

// ScanArrowBatches implements Source; the relational backend produces rows
// only, so columnar scans are refused with an Unsupported error.
func (s *SQLSource) ScanArrowBatches(ctx context.Context, req *ScanRequest) (BatchIterator, error) {
	return nil, apperr.New(apperr.KindUnsupported, "sql source produces row-map batches; scan with use-columnar-batches disabled")
}

func predicateToSqlizer(pred pushdown.Predicate) sqrl.Sqlizer {
	switch pred.Op {
	case pushdown.OpEq:
		return sqrl.Eq{pred.Column: pred.Value}
	case pushdown.OpNe:
		return sqrl.NotEq{pred.Column: pred.Value}
	case pushdown.OpLt:
		return sqrl.Lt{pred.Column: pred.Value}
	case pushdown.OpLte:
		return sqrl.LtOrEq{pred.Column: pred.Value}
	case pushdown.OpGt:
		return sqrl.Gt{pred.Column: pred.Value}
	case pushdown.OpGte:
		return sqrl.GtOrEq{pred.Column: pred.Value}
	case pushdown.OpIn:
		return sqrl.Eq{pred.Column: pred.Value}
	case pushdown.OpIsNull:
		return sqrl.Eq{pred.Column: nil}
	case pushdown.OpNotNull:
		return sqrl.NotEq{pred.Column: nil}
	default:
		return sqrl.Expr("1=1")
	}
}

type sqlIterator struct {
	rows      *sql.Rows
	batchSize int
	done      bool
}

func (it *sqlIterator) Next(ctx context.Context) (*Batch, error) {
	if it.done {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	columns, err := it.rows.Columns()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "reading result columns")
	}

	batch := make([]map[string]any, 0, it.batchSize)

	for len(batch) < it.batchSize {
		if !it.rows.Next() {
			it.done = true

			if err := it.rows.Err(); err != nil {
				return nil, apperr.Wrap(apperr.KindIOError, err, "scanning result rows")
			}

			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := it.rows.Scan(ptrs...); err != nil {
			return nil, apperr.Wrap(apperr.KindIOError, err, "scanning result row")
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}

		batch = append(batch, row)
	}

	if len(batch) == 0 {
		return nil, nil
	}

	return NewRowBatch(batch), nil
}

func (it *sqlIterator) Close() error {
	return it.rows.Close()
}

func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
