package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to verify that PostgresStore implements Repository.
// If the interface changes and the struct doesn't, the build fails here.
var _ Repository = (*PostgresStore)(nil)

// PostgresStore is the implementation of Repository backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

// Ping verifies the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// mapWriteError translates driver errors into package sentinels.
func mapWriteError(err error, entity, id string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Error Code 23505: unique_violation
		if pgErr.Code == "23505" {
			return fmt.Errorf("%s %q %w", entity, id, ErrConflict)
		}
	}
	return fmt.Errorf("failed to write %s: %w", entity, err)
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

const customerColumns = `id, name, email, spend, visits, last_active, created_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Spend, &c.Visits, &c.LastActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCustomers writes all customers in a single batch round trip.
func (s *PostgresStore) UpsertCustomers(ctx context.Context, customers []*Customer) error {
	if len(customers) == 0 {
		return nil
	}

	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    spend = EXCLUDED.spend,
		    visits = EXCLUDED.visits,
		    last_active = EXCLUDED.last_active
	`

	batch := &pgx.Batch{}
	for _, c := range customers {
		prepareCustomer(c)
		batch.Queue(query, c.ID, c.Name, c.Email, c.Spend, c.Visits, c.LastActive, c.CreatedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, c := range customers {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert customer %q: %w", c.ID, err)
		}
	}

	return nil
}

// ListAllCustomers loads the full customer set.
func (s *PostgresStore) ListAllCustomers(ctx context.Context) ([]*Customer, error) {
	rows, err := s.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return customers, nil
}

// ListCustomers retrieves a page of customers.
// It executes two queries: one for the total count and one for the data.
func (s *PostgresStore) ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	if total == 0 {
		return []*Customer{}, 0, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at, id LIMIT NULLIF($1, 0) OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*Customer, 0, max(limit, 0))
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return customers, total, nil
}

// -----------------------------------------------------------------------------
// Segments
// -----------------------------------------------------------------------------

const segmentColumns = `id, name, description, rules, created_by, created_at, customer_ids, customer_count, materialized_at`

func scanSegment(row pgx.Row) (*Segment, error) {
	var seg Segment
	if err := row.Scan(
		&seg.ID,
		&seg.Name,
		&seg.Description,
		&seg.Rules,
		&seg.CreatedBy,
		&seg.CreatedAt,
		&seg.CustomerIDs,
		&seg.CustomerCount,
		&seg.MaterializedAt,
	); err != nil {
		return nil, err
	}
	return &seg, nil
}

// CreateSegment inserts a segment. ID and CreatedAt are assigned when empty.
func (s *PostgresStore) CreateSegment(ctx context.Context, seg *Segment) error {
	prepareSegment(seg)

	query := `
		INSERT INTO segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		seg.ID,
		seg.Name,
		seg.Description,
		seg.Rules,
		seg.CreatedBy,
		seg.CreatedAt,
		seg.CustomerIDs,
		seg.CustomerCount,
		seg.MaterializedAt,
	)
	if err != nil {
		return mapWriteError(err, "segment", seg.ID)
	}

	return nil
}

// GetSegment loads one segment by id.
func (s *PostgresStore) GetSegment(ctx context.Context, id string) (*Segment, error) {
	seg, err := scanSegment(s.db.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return seg, nil
}

// ListSegments retrieves a page of segments, newest first.
func (s *PostgresStore) ListSegments(ctx context.Context, limit, offset int) ([]*Segment, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM segments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count segments: %w", err)
	}

	if total == 0 {
		return []*Segment{}, 0, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+segmentColumns+` FROM segments ORDER BY created_at DESC, id DESC LIMIT NULLIF($1, 0) OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	segments := make([]*Segment, 0, max(limit, 0))
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan segment row: %w", err)
		}
		segments = append(segments, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return segments, total, nil
}

// SaveMaterialization overwrites the cached evaluation result.
func (s *PostgresStore) SaveMaterialization(ctx context.Context, id string, customerIDs []string, at time.Time) error {
	if customerIDs == nil {
		customerIDs = []string{}
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE segments SET customer_ids = $2, customer_count = $3, materialized_at = $4 WHERE id = $1`,
		id, customerIDs, len(customerIDs), at,
	)
	if err != nil {
		return fmt.Errorf("failed to save materialization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSegment removes a segment. Campaigns referencing it are left untouched.
func (s *PostgresStore) DeleteSegment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

const campaignColumns = `id, name, segment_id, subject, message_template, discount_percentage, status,
	total_messages, sent_count, failed_count, created_at, completed_at`

func scanCampaign(row pgx.Row) (*Campaign, error) {
	var c Campaign
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.SegmentID,
		&c.Subject,
		&c.MessageTemplate,
		&c.DiscountPercentage,
		&c.Status,
		&c.TotalMessages,
		&c.SentCount,
		&c.FailedCount,
		&c.CreatedAt,
		&c.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCampaign inserts a campaign. ID, CreatedAt and Status are defaulted when empty.
func (s *PostgresStore) CreateCampaign(ctx context.Context, c *Campaign) error {
	prepareCampaign(c)

	_, err := s.db.Exec(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID,
		c.Name,
		c.SegmentID,
		c.Subject,
		c.MessageTemplate,
		c.DiscountPercentage,
		c.Status,
		c.TotalMessages,
		c.SentCount,
		c.FailedCount,
		c.CreatedAt,
		c.CompletedAt,
	)
	if err != nil {
		return mapWriteError(err, "campaign", c.ID)
	}
	return nil
}

// GetCampaign loads one campaign by id.
func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	c, err := scanCampaign(s.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns retrieves a page of campaigns, newest first.
func (s *PostgresStore) ListCampaigns(ctx context.Context, limit, offset int) ([]*Campaign, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM campaigns`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	if total == 0 {
		return []*Campaign{}, 0, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id DESC LIMIT NULLIF($1, 0) OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]*Campaign, 0, max(limit, 0))
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return campaigns, total, nil
}

// CompleteCampaign stores the final counters.
func (s *PostgresStore) CompleteCampaign(ctx context.Context, id string, sent, failed int, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE campaigns
		SET status = $2, sent_count = $3, failed_count = $4, total_messages = $3 + $4, completed_at = $5
		WHERE id = $1`,
		id, CampaignCompleted, sent, failed, at,
	)
	if err != nil {
		return fmt.Errorf("failed to complete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Communication logs
// -----------------------------------------------------------------------------

var logColumnList = []string{
	"id", "campaign_id", "customer_id", "customer_name", "customer_email", "subject", "body",
	"discount_percentage", "status", "vendor_message_id", "error_message",
	"sent_at", "delivered_at", "created_at", "updated_at",
}

var logColumns = strings.Join(logColumnList, ", ")

func scanLog(row pgx.Row) (*CommunicationLog, error) {
	var l CommunicationLog
	if err := row.Scan(
		&l.ID,
		&l.CampaignID,
		&l.CustomerID,
		&l.CustomerName,
		&l.CustomerEmail,
		&l.Subject,
		&l.Body,
		&l.DiscountPercentage,
		&l.Status,
		&l.VendorMessageID,
		&l.ErrorMessage,
		&l.SentAt,
		&l.DeliveredAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLogs(rows pgx.Rows, capacity int) ([]*CommunicationLog, error) {
	defer rows.Close()

	logs := make([]*CommunicationLog, 0, max(capacity, 0))
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return logs, nil
}

// CreateLogs bulk-inserts entries with the COPY protocol.
func (s *PostgresStore) CreateLogs(ctx context.Context, logs []*CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	for _, l := range logs {
		prepareLog(l)
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"communication_logs"},
		logColumnList,
		pgx.CopyFromSlice(len(logs), func(i int) ([]any, error) {
			l := logs[i]
			return []any{
				l.ID, l.CampaignID, l.CustomerID, l.CustomerName, l.CustomerEmail, l.Subject, l.Body,
				l.DiscountPercentage, string(l.Status), l.VendorMessageID, l.ErrorMessage,
				l.SentAt, l.DeliveredAt, l.CreatedAt, l.UpdatedAt,
			}, nil
		}),
	)
	if err != nil {
		return mapWriteError(err, "communication log", logs[0].ID)
	}
	return nil
}

// GetLog loads one entry by id.
func (s *PostgresStore) GetLog(ctx context.Context, id string) (*CommunicationLog, error) {
	l, err := scanLog(s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM communication_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("communication log %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get communication log: %w", err)
	}
	return l, nil
}

// buildLogWhere renders the filter as a WHERE clause with positional args.
func buildLogWhere(f LogFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CampaignID != "" {
		add("campaign_id = $%d", f.CampaignID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListLogs retrieves a filtered page of entries.
func (s *PostgresStore) ListLogs(ctx context.Context, f LogFilter) ([]*CommunicationLog, int64, error) {
	where, args := buildLogWhere(f)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM communication_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count communication logs: %w", err)
	}

	if total == 0 {
		return []*CommunicationLog{}, 0, nil
	}

	query := fmt.Sprintf(
		`SELECT %s FROM communication_logs%s ORDER BY created_at DESC, id DESC LIMIT NULLIF($%d, 0) OFFSET $%d`,
		logColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := s.db.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list communication logs: %w", err)
	}

	logs, err := collectLogs(rows, f.Limit)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// TransitionLog performs the compare-and-set in a single UPDATE; the status
// predicate makes concurrent transitions from the same state mutually exclusive.
func (s *PostgresStore) TransitionLog(ctx context.Context, id string, t LogTransition) (*CommunicationLog, error) {
	query := `
		UPDATE communication_logs
		SET status = $3,
		    vendor_message_id = COALESCE($4, vendor_message_id),
		    error_message = COALESCE($5, error_message),
		    sent_at = COALESCE($6, sent_at),
		    delivered_at = COALESCE($7, delivered_at),
		    updated_at = $8
		WHERE id = $1 AND status = $2
		RETURNING ` + logColumns

	l, err := scanLog(s.db.QueryRow(ctx, query,
		id,
		string(t.From),
		string(t.To),
		t.VendorMessageID,
		t.ErrorMessage,
		t.SentAt,
		t.DeliveredAt,
		t.UpdatedAt,
	))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition communication log: %w", err)
	}

	// Nothing matched: distinguish a missing entry from a lost race.
	var current MessageStatus
	err = s.db.QueryRow(ctx, `SELECT status FROM communication_logs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("communication log %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read communication log status: %w", err)
	}
	return nil, fmt.Errorf("communication log %q is %s, expected %s: %w", id, current, t.From, ErrStatusConflict)
}

// ListLogsSentBetween returns entries whose sent_at is inside [from, to].
func (s *PostgresStore) ListLogsSentBetween(ctx context.Context, from, to time.Time) ([]*CommunicationLog, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+logColumns+` FROM communication_logs WHERE sent_at >= $1 AND sent_at <= $2 ORDER BY sent_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent communication logs: %w", err)
	}
	return collectLogs(rows, 0)
}

// CountLogsByStatus groups entries by status.
func (s *PostgresStore) CountLogsByStatus(ctx context.Context, from, to *time.Time) (StatusCounts, error) {
	where, args := buildLogWhere(LogFilter{CreatedFrom: from, CreatedTo: to})

	rows, err := s.db.Query(ctx, `SELECT status, count(*) FROM communication_logs`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count communication logs: %w", err)
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var status MessageStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Vendor messages
// -----------------------------------------------------------------------------

// RecordMessage upserts the gateway's record for a message id.
func (s *PostgresStore) RecordMessage(ctx context.Context, m *VendorMessage) error {
	prepareMessage(m)

	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (message_id, vendor_message_id, customer_email, customer_name, subject, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO UPDATE
		SET vendor_message_id = EXCLUDED.vendor_message_id,
		    status = EXCLUDED.status,
		    error_message = EXCLUDED.error_message`,
		m.MessageID,
		m.VendorMessageID,
		m.CustomerEmail,
		m.CustomerName,
		m.Subject,
		string(m.Status),
		m.ErrorMessage,
		m.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "vendor message", m.MessageID)
	}
	return nil
}

// GetMessage loads a vendor message record.
func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (*VendorMessage, error) {
	var m VendorMessage
	err := s.db.QueryRow(ctx, `
		SELECT message_id, vendor_message_id, customer_email, customer_name, subject, status, error_message, created_at
		FROM messages WHERE message_id = $1`, messageID,
	).Scan(&m.MessageID, &m.VendorMessageID, &m.CustomerEmail, &m.CustomerName, &m.Subject, &m.Status, &m.ErrorMessage, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vendor message %q: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor message: %w", err)
	}
	return &m, nil
}

// -----------------------------------------------------------------------------
// Restore
// -----------------------------------------------------------------------------

// sendRestoreBatch runs one queued upsert per entity.
func (s *PostgresStore) sendRestoreBatch(ctx context.Context, batch *pgx.Batch, kind string, ids []string) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, id := range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to restore %s %q: %w", kind, id, err)
		}
	}
	return nil
}

// RestoreSegments upserts full segment rows.
func (s *PostgresStore) RestoreSegments(ctx context.Context, segments []*Segment) error {
	if len(segments) == 0 {
		return nil
	}

	query := `
		INSERT INTO segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    rules = EXCLUDED.rules,
		    created_by = EXCLUDED.created_by,
		    customer_ids = EXCLUDED.customer_ids,
		    customer_count = EXCLUDED.customer_count,
		    materialized_at = EXCLUDED.materialized_at
	`

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(segments))
	for _, seg := range segments {
		batch.Queue(query,
			seg.ID, seg.Name, seg.Description, seg.Rules, seg.CreatedBy, seg.CreatedAt,
			seg.CustomerIDs, seg.CustomerCount, seg.MaterializedAt,
		)
		ids = append(ids, seg.ID)
	}
	return s.sendRestoreBatch(ctx, batch, "segment", ids)
}

// RestoreCampaigns upserts full campaign rows.
func (s *PostgresStore) RestoreCampaigns(ctx context.Context, campaigns []*Campaign) error {
	if len(campaigns) == 0 {
		return nil
	}

	query := `
		INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    segment_id = EXCLUDED.segment_id,
		    subject = EXCLUDED.subject,
		    message_template = EXCLUDED.message_template,
		    discount_percentage = EXCLUDED.discount_percentage,
		    status = EXCLUDED.status,
		    total_messages = EXCLUDED.total_messages,
		    sent_count = EXCLUDED.sent_count,
		    failed_count = EXCLUDED.failed_count,
		    completed_at = EXCLUDED.completed_at
	`

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		batch.Queue(query,
			c.ID, c.Name, c.SegmentID, c.Subject, c.MessageTemplate, c.DiscountPercentage, string(c.Status),
			c.TotalMessages, c.SentCount, c.FailedCount, c.CreatedAt, c.CompletedAt,
		)
		ids = append(ids, c.ID)
	}
	return s.sendRestoreBatch(ctx, batch, "campaign", ids)
}

// RestoreLogs upserts full log rows. A row already at a later updated_at is kept.
func (s *PostgresStore) RestoreLogs(ctx context.Context, logs []*CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	query := `
		INSERT INTO communication_logs (` + logColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    vendor_message_id = EXCLUDED.vendor_message_id,
		    error_message = EXCLUDED.error_message,
		    sent_at = EXCLUDED.sent_at,
		    delivered_at = EXCLUDED.delivered_at,
		    updated_at = EXCLUDED.updated_at
		WHERE communication_logs.updated_at <= EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		batch.Queue(query,
			l.ID, l.CampaignID, l.CustomerID, l.CustomerName, l.CustomerEmail, l.Subject, l.Body,
			l.DiscountPercentage, string(l.Status), l.VendorMessageID, l.ErrorMessage,
			l.SentAt, l.DeliveredAt, l.CreatedAt, l.UpdatedAt,
		)
		ids = append(ids, l.ID)
	}
	return s.sendRestoreBatch(ctx, batch, "communication log", ids)
}
