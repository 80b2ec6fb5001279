// Package bigquery implements store.Store on top of a BigQuery dataset. It is
// the cloud counterpart of boltstore: same interface, warehouse tables instead
// of a local file. Reads go through parameterized queries; inserts use the
// streaming inserter.
package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/recon-engine/internal/dateparse"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/store"
)

const (
	recordsTable = "records"
	balanceTable = "balance"

	balanceRowKey = "ledger"
)

// Config identifies the dataset the store works against.
type Config struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
}

// Store is a BigQuery-backed implementation of store.Store.
type Store struct {
	client *bigquery.Client
	cfg    Config
	dates  *dateparse.Normalizer
}

// New creates a Store using the provided client. The client's lifecycle is
// owned by the caller.
func New(client *bigquery.Client, cfg Config, dates *dateparse.Normalizer) *Store {
	if dates == nil {
		dates = dateparse.Default()
	}
	return &Store{client: client, cfg: cfg, dates: dates}
}

// Open creates a client and a Store around it. Close releases the client.
func Open(ctx context.Context, cfg Config, dates *dateparse.Normalizer) (*Store, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("Open: bigquery client: %w", err)
	}
	return New(client, cfg, dates), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.cfg.ProjectID, s.cfg.DatasetID, name)
}

// Create assigns the next free ID and streams the row in.
//
// ID allocation is a MAX(id)+1 query: this store serves batch reconciliation
// jobs that insert from a single writer, not concurrent OLTP traffic.
func (s *Store) Create(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	cp := rec.Clone()
	cp.ID = id
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	row, err := rowFromRecord(cp, s.dates)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	table := s.client.DatasetInProject(s.cfg.ProjectID, s.cfg.DatasetID).Table(recordsTable)
	if err := table.Inserter().Put(ctx, []*RecordRow{row}); err != nil {
		return nil, fmt.Errorf("Create: inserting row: %w", err)
	}
	return cp, nil
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	q := s.client.Query(`SELECT IFNULL(MAX(id), 0) + 1 AS next_id FROM ` + s.table(recordsTable))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("nextID: query read: %w", err)
	}
	var row struct {
		NextID int64 `bigquery:"next_id"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("nextID: iter next: %w", err)
	}
	return row.NextID, nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	q := s.client.Query(`SELECT * FROM ` + s.table(recordsTable) + ` WHERE id = @id`)
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: query read: %w", err)
	}

	var row RecordRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: iter next: %w", err)
	}
	return recordFromRow(&row)
}

// Update rewrites the mutable columns of an existing record via DML.
func (s *Store) Update(ctx context.Context, rec *domain.TransactionRecord) error {
	confidence := ""
	if len(rec.Confidence) > 0 {
		data, err := json.Marshal(rec.Confidence)
		if err != nil {
			return fmt.Errorf("Update: marshal confidence: %w", err)
		}
		confidence = string(data)
	}

	parsedDate := bigquery.NullDate{}
	if t, ok := s.dates.Parse(rec.Date); ok {
		parsedDate = bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
	}

	q := s.client.Query(`
		UPDATE ` + s.table(recordsTable) + `
		SET date = @date,
		    parsed_date = @parsed_date,
		    vendor = @vendor,
		    income = @income,
		    expense = @expense,
		    transaction_type = @transaction_type,
		    currency = @currency,
		    category = @category,
		    notes = @notes,
		    confidence = IF(@confidence = '', NULL, PARSE_JSON(@confidence)),
		    is_duplicate = @is_duplicate,
		    duplicate_of = @duplicate_of,
		    needs_review = @needs_review,
		    remaining_balance = @remaining_balance,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE id = @id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: rec.ID},
		{Name: "date", Value: rec.Date},
		{Name: "parsed_date", Value: parsedDate},
		{Name: "vendor", Value: rec.Vendor},
		{Name: "income", Value: rec.Income.String()},
		{Name: "expense", Value: rec.Expense.String()},
		{Name: "transaction_type", Value: string(rec.Type)},
		{Name: "currency", Value: rec.Currency},
		{Name: "category", Value: rec.Category},
		{Name: "notes", Value: rec.Notes},
		{Name: "confidence", Value: confidence},
		{Name: "is_duplicate", Value: rec.IsDuplicate},
		{Name: "duplicate_of", Value: rec.DuplicateOf},
		{Name: "needs_review", Value: rec.NeedsReview},
		{Name: "remaining_balance", Value: rec.RemainingBalance.String()},
	}

	affected, err := s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	q := s.client.Query(`DELETE FROM ` + s.table(recordsTable) + ` WHERE id = @id`)
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	affected, err := s.runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List retrieves records matching the filter, ordered by ID.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]*domain.TransactionRecord, error) {
	query := `SELECT * FROM ` + s.table(recordsTable) + ` WHERE TRUE`
	var params []bigquery.QueryParameter

	if filter.NeedsReview != nil {
		query += ` AND needs_review = @needs_review`
		params = append(params, bigquery.QueryParameter{Name: "needs_review", Value: *filter.NeedsReview})
	}
	if filter.IsDuplicate != nil {
		query += ` AND is_duplicate = @is_duplicate`
		params = append(params, bigquery.QueryParameter{Name: "is_duplicate", Value: *filter.IsDuplicate})
	}
	if filter.Category != "" {
		query += ` AND category = @category`
		params = append(params, bigquery.QueryParameter{Name: "category", Value: filter.Category})
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT @limit`
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(filter.Limit)})
	}
	if filter.Offset > 0 {
		query += ` OFFSET @offset`
		params = append(params, bigquery.QueryParameter{Name: "offset", Value: int64(filter.Offset)})
	}

	q := s.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: query read: %w", err)
	}

	result := []*domain.TransactionRecord{}
	for {
		var row RecordRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iter next: %w", err)
		}
		rec, err := recordFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		result = append(result, rec)
	}
	return result, nil
}

// GetBalance reads the singleton balance row, returning a zero balance if the
// table is empty.
func (s *Store) GetBalance(ctx context.Context) (*domain.Balance, error) {
	q := s.client.Query(`SELECT * FROM ` + s.table(balanceTable) + ` WHERE key = @key`)
	q.Parameters = []bigquery.QueryParameter{{Name: "key", Value: balanceRowKey}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: query read: %w", err)
	}

	var row BalanceRow
	err = it.Next(&row)
	if err == iterator.Done {
		return &domain.Balance{
			OpeningBalance: decimal.Zero,
			CurrentBalance: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBalance: iter next: %w", err)
	}

	return &domain.Balance{
		OpeningBalance: decimalFromRat(row.OpeningBalance),
		CurrentBalance: decimalFromRat(row.CurrentBalance),
		TotalIncome:    decimalFromRat(row.TotalIncome),
		TotalExpense:   decimalFromRat(row.TotalExpense),
		LastUpdated:    row.UpdatedTS,
	}, nil
}

// SaveBalance upserts the singleton balance row.
func (s *Store) SaveBalance(ctx context.Context, b *domain.Balance) error {
	q := s.client.Query(`
		MERGE ` + s.table(balanceTable) + ` t
		USING (SELECT @key AS key) src
		ON t.key = src.key
		WHEN MATCHED THEN UPDATE SET
			opening_balance = @opening_balance,
			current_balance = @current_balance,
			total_income = @total_income,
			total_expense = @total_expense,
			updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN INSERT
			(key, opening_balance, current_balance, total_income, total_expense, updated_ts)
		VALUES
			(@key, @opening_balance, @current_balance, @total_income, @total_expense, CURRENT_TIMESTAMP())
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "key", Value: balanceRowKey},
		{Name: "opening_balance", Value: b.OpeningBalance.String()},
		{Name: "current_balance", Value: b.CurrentBalance.String()},
		{Name: "total_income", Value: b.TotalIncome.String()},
		{Name: "total_expense", Value: b.TotalExpense.String()},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveBalance: %w", err)
	}
	return nil
}

func (s *Store) runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if status.Err() != nil {
		return 0, fmt.Errorf("job failed: %w", status.Err())
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}
