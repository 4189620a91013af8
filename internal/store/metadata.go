package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// Metadata keys describing the question bank the server was started with.
const (
	MetaBankSource   = "bank_source"
	MetaBankChecksum = "bank_checksum"
	MetaBankRecords  = "bank_records"
	MetaStartedAt    = "started_at"
)

// BankInfo identifies the loaded question bank.
type BankInfo struct {
	Source   string
	Checksum string
	Records  int
}

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetBankInfo records the bank in use and the server start time.
func (s *Store) SetBankInfo(ctx context.Context, info BankInfo) error {
	pairs := []struct{ k, v string }{
		{MetaBankSource, info.Source},
		{MetaBankChecksum, info.Checksum},
		{MetaBankRecords, strconv.Itoa(info.Records)},
		{MetaStartedAt, s.now().Format(time.RFC3339)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(ctx, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetBankInfo reads the bank fields from metadata.
func (s *Store) GetBankInfo(ctx context.Context) (BankInfo, error) {
	var info BankInfo
	var err error

	if info.Source, err = s.GetMetadata(ctx, MetaBankSource); err != nil {
		return info, err
	}
	if info.Checksum, err = s.GetMetadata(ctx, MetaBankChecksum); err != nil {
		return info, err
	}
	n, err := s.GetMetadata(ctx, MetaBankRecords)
	if err != nil {
		return info, err
	}
	if n != "" {
		info.Records, err = strconv.Atoi(n)
		if err != nil {
			return info, err
		}
	}
	return info, nil
}
