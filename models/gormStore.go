package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrDuplicateRecord = errors.New("duplicate record")

const descriptionCachePrefix = "dq:coldesc:"

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GormStore is the MySQL-backed store of the pipeline: it reads the source
// tables and owns the check stores, suggestions, runs and the dictionary.
type GormStore struct {
	db             *gorm.DB
	checkTables    map[string]bool
	descriptionTTL time.Duration
	logger         *logrus.Logger
}

func NewGormStore(db *gorm.DB, registry *dqcheck.Registry, descriptionTTL time.Duration, logger *logrus.Logger) *GormStore {
	known := make(map[string]bool)
	for _, t := range registry.CheckTables() {
		known[t] = true
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &GormStore{db: db, checkTables: known, descriptionTTL: descriptionTTL, logger: logger}
}

func (s *GormStore) checkTable(name string) error {
	if !s.checkTables[name] {
		return fmt.Errorf("check table %s: %w", name, dqcheck.ErrUnknownTable)
	}
	return nil
}

func (s *GormStore) LoadEntityRows(ctx context.Context, table string, entityID int64) ([]dqcheck.Row, error) {
	return sourceRows(s.db.WithContext(ctx).Where("SK_ID_CURR = ?", entityID), table)
}

func (s *GormStore) LoadTableRows(ctx context.Context, table string) ([]dqcheck.Row, error) {
	return sourceRows(s.db.WithContext(ctx), table)
}

// ResetEntity removes every observation and suggestion of the entity in a
// single transaction.
func (s *GormStore) ResetEntity(ctx context.Context, entityID int64, checkTables []string) error {
	for _, t := range checkTables {
		if err := s.checkTable(t); err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range checkTables {
			if err := tx.Table(t).Where("SK_ID_CURR = ?", entityID).Delete(&DqCheck{}).Error; err != nil {
				return fmt.Errorf("reset %s: %w", t, err)
			}
		}
		if err := tx.Where("SK_ID_CURR = ?", entityID).Delete(&DqSuggestion{}).Error; err != nil {
			return fmt.Errorf("reset suggestions: %w", err)
		}
		return nil
	})
}

// TruncateChecks empties the given check stores before a full sweep.
func (s *GormStore) TruncateChecks(ctx context.Context, checkTables []string) error {
	for _, t := range checkTables {
		if err := s.checkTable(t); err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Exec(fmt.Sprintf("TRUNCATE TABLE `%s`", t)).Error; err != nil {
			return fmt.Errorf("truncate %s: %w", t, err)
		}
	}
	return nil
}

func (s *GormStore) InsertIssue(ctx context.Context, checkTable string, obs dqcheck.Observation) error {
	if err := s.checkTable(checkTable); err != nil {
		return err
	}
	row, err := NewDqCheck(obs)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Table(checkTable).Create(&row).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("%s: %w", checkTable, ErrDuplicateRecord)
		}
		return err
	}
	return nil
}

func (s *GormStore) InsertSuggestions(ctx context.Context, batch SuggestionBatch) error {
	rows := batch.Rows()
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

func (s *GormStore) RecordRun(ctx context.Context, run *DqRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("run %s: %w", run.CorrelationId, ErrDuplicateRecord)
		}
		return err
	}
	return nil
}

// DescribeColumn looks the column up in the dictionary, going through the
// Redis cache when one is connected. Misses are cached too.
func (s *GormStore) DescribeColumn(ctx context.Context, table, column string) (string, bool, error) {
	key := descriptionCachePrefix + table + ":" + column
	var cached string
	if ok, err := config.GetRedisObject(key, &cached); err != nil {
		s.logger.WithFields(logrus.Fields{"field": "DescribeColumn", "key": key}).WithError(err).Warn("description cache read failed")
	} else if ok {
		return cached, cached != "", nil
	}

	var entry ColumnDescription
	err := s.db.WithContext(ctx).
		Where("TABLE_NAME = ? AND ROW_NAME = ?", table, column).
		First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry.Description = ""
	case err != nil:
		return "", false, err
	}

	if err := config.SetRedisObject(key, entry.Description, s.descriptionTTL); err != nil {
		s.logger.WithFields(logrus.Fields{"field": "DescribeColumn", "key": key}).WithError(err).Warn("description cache write failed")
	}
	return entry.Description, entry.Description != "", nil
}

// IngestColumnDictionary loads dictionary entries, optionally replacing the
// current content, and drops the cached descriptions.
func (s *GormStore) IngestColumnDictionary(ctx context.Context, entries []ColumnDescription, replace bool) (int, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ColumnDescription{}).Error; err != nil {
				return err
			}
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(&entries, 500).Error
	})
	if err != nil {
		return 0, err
	}
	if _, err := config.RemoveRedisPattern(ctx, descriptionCachePrefix+"*"); err != nil {
		s.logger.WithFields(logrus.Fields{"field": "IngestColumnDictionary"}).WithError(err).Warn("description cache purge failed")
	}
	return len(entries), nil
}
