package docstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/caseflow/database"
)

// Record is the row layout of the documents table.
type Record struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"size:255;not null;index:idx_documents_partition,priority:1"`
	Partition  string `gorm:"column:part_key;size:64;not null;index:idx_documents_partition,priority:2"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "documents" }

// SQL is a Store backed by a GORM database.
type SQL struct {
	db *database.DB
}

var _ Store = (*SQL)(nil)

// NewSQL creates the store and migrates its table.
func NewSQL(db *database.DB) (*SQL, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, classify("migrate", "documents", err)
	}
	return &SQL{db: db}, nil
}

func classify(op, collection string, err error) error {
	kind := ErrRejected
	if database.IsConnectionError(err) {
		kind = ErrConnection
	}
	return &Error{Op: op, Collection: collection, Kind: kind, Err: err}
}

func (s *SQL) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

func (s *SQL) scan(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	rows, err := s.db.WithContext(ctx).Model(&Record{}).
		Where("collection = ?", collection).
		Order("id").
		Rows()
	if err != nil {
		return nil, classify("find", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Document
	for rows.Next() {
		var r Record
		if err := s.db.GormDB.ScanRows(rows, &r); err != nil {
			return nil, classify("find", collection, err)
		}
		d, err := decode(r.Body)
		if err != nil {
			return nil, classify("find", collection, err)
		}
		if filter.Matches(d) {
			out = append(out, d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find", collection, err)
	}
	return out, nil
}

func (s *SQL) FindOne(ctx context.Context, collection string, filter Filter) (Document, bool, error) {
	docs, err := s.scan(ctx, collection, filter, 1)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (s *SQL) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	return s.scan(ctx, collection, filter, 0)
}

func (s *SQL) Count(ctx context.Context, collection, partition string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("collection = ? AND part_key = ?", collection, partition).
		Count(&n).Error
	if err != nil {
		return 0, classify("count", collection, err)
	}
	return n, nil
}

func (s *SQL) InsertMany(ctx context.Context, collection, partition string, docs []Document) (int, error) {
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return insertRecords(tx, collection, partition, docs)
	})
	if err != nil {
		return 0, classify("insert", collection, err)
	}
	return len(docs), nil
}

func (s *SQL) DeleteMany(ctx context.Context, collection, partition string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND part_key = ?", collection, partition).
		Delete(&Record{})
	if res.Error != nil {
		return 0, classify("delete", collection, res.Error)
	}
	return res.RowsAffected, nil
}

// ReplacePartition deletes and re-inserts inside one transaction, so a
// failure leaves the previous contents in place.
func (s *SQL) ReplacePartition(ctx context.Context, collection, partition string, docs []Document) (int, error) {
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("collection = ? AND part_key = ?", collection, partition).Delete(&Record{}).Error; err != nil {
			return err
		}
		return insertRecords(tx, collection, partition, docs)
	})
	if err != nil {
		return 0, classify("replace", collection, err)
	}
	return len(docs), nil
}

func (s *SQL) Close() error { return s.db.Close() }

func insertRecords(tx *gorm.DB, collection, partition string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]Record, 0, len(docs))
	for _, d := range docs {
		body, err := encode(d)
		if err != nil {
			return err
		}
		rows = append(rows, Record{Collection: collection, Partition: partition, Body: body})
	}
	return tx.CreateInBatches(rows, 200).Error
}
