package zonestore

import (
	"context"

	"authdns/wire"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zoneRow is the gorm model for the zone table, matching spec.md §6's
// schema exactly: domain, record_type and value form the primary key, so
// the same (domain, type) pair may carry several values (e.g. two A
// records) without colliding.
type zoneRow struct {
	Domain     string `gorm:"primaryKey;column:domain"`
	RecordType string `gorm:"primaryKey;column:record_type"`
	Value      string `gorm:"primaryKey;column:value"`
	TTL        uint32 `gorm:"column:ttl"`
}

func (zoneRow) TableName() string { return "zone" }

// GormStore is the reference Store backed by a SQLite database file,
// opened and migrated once at startup (spec.md §6).
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore opens (creating if necessary) the SQLite database at path
// and ensures the zone table exists.
func OpenGormStore(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&zoneRow{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, domain string, rtype wire.RecordType) ([]Row, error) {
	var rows []zoneRow

	err := s.db.WithContext(ctx).
		Where("domain = ? AND record_type = ?", normalizeDomain(domain), rtype.String()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return toRows(rtype, rows), nil
}

func (s *GormStore) GetAll(ctx context.Context, domain string) ([]Row, error) {
	var rows []zoneRow

	if err := s.db.WithContext(ctx).Where("domain = ?", normalizeDomain(domain)).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{Type: parseType(r.RecordType), Value: r.Value, TTL: r.TTL})
	}

	return out, nil
}

func (s *GormStore) Put(ctx context.Context, domain string, rtype wire.RecordType, value string, ttl uint32) error {
	row := zoneRow{Domain: normalizeDomain(domain), RecordType: rtype.String(), Value: value, TTL: ttl}

	return s.db.WithContext(ctx).Save(&row).Error
}

func toRows(rtype wire.RecordType, rows []zoneRow) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{Type: rtype, Value: r.Value, TTL: r.TTL})
	}

	return out
}

var typeByName = func() map[string]wire.RecordType {
	m := make(map[string]wire.RecordType)
	for _, t := range []wire.RecordType{
		wire.TypeA, wire.TypeNS, wire.TypeCNAME, wire.TypeSOA, wire.TypePTR,
		wire.TypeMX, wire.TypeTXT, wire.TypeAAAA, wire.TypeDS, wire.TypeDNSKEY,
	} {
		m[t.String()] = t
	}

	return m
}()

func parseType(name string) wire.RecordType {
	return typeByName[name]
}
