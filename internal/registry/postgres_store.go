package registry

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore caches room records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed registry store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const roomColumns = `room_id, name, initiator, counterparty, invite_link, request_id,
	       created_at, processed, buyer_username, seller_username,
	       buyer_address, seller_address`

func (p *PostgresStore) Put(ctx context.Context, r *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rooms (
			room_id, name, initiator, counterparty, invite_link, request_id,
			created_at, processed, buyer_username, seller_username,
			buyer_address, seller_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (room_id) DO UPDATE SET
			name = EXCLUDED.name,
			invite_link = EXCLUDED.invite_link,
			processed = EXCLUDED.processed,
			buyer_username = EXCLUDED.buyer_username,
			seller_username = EXCLUDED.seller_username,
			buyer_address = EXCLUDED.buyer_address,
			seller_address = EXCLUDED.seller_address`,
		r.RoomID, r.Name, r.Initiator, r.Counterparty,
		nullString(r.InviteLink), nullString(r.RequestID),
		r.CreatedAt, r.Processed,
		nullString(r.BuyerUsername), nullString(r.SellerUsername),
		nullString(r.BuyerAddress), nullString(r.SellerAddress),
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, roomID int64) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1`, roomID)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (p *PostgresStore) Unprocessed(ctx context.Context) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE processed = FALSE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (p *PostgresStore) MarkProcessed(ctx context.Context, roomID int64) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE rooms SET processed = TRUE WHERE room_id = $1`, roomID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	return n, err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var (
		inviteLink     sql.NullString
		requestID      sql.NullString
		buyerUsername  sql.NullString
		sellerUsername sql.NullString
		buyerAddress   sql.NullString
		sellerAddress  sql.NullString
		createdAt      time.Time
	)

	err := s.Scan(
		&r.RoomID, &r.Name, &r.Initiator, &r.Counterparty,
		&inviteLink, &requestID, &createdAt, &r.Processed,
		&buyerUsername, &sellerUsername, &buyerAddress, &sellerAddress,
	)
	if err != nil {
		return nil, err
	}

	r.InviteLink = inviteLink.String
	r.RequestID = requestID.String
	r.CreatedAt = createdAt
	r.BuyerUsername = buyerUsername.String
	r.SellerUsername = sellerUsername.String
	r.BuyerAddress = buyerAddress.String
	r.SellerAddress = sellerAddress.String

	return r, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var result []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
