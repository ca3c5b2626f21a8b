// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore is a gorm + sqlite JobRepository: a single "jobs" table
// mirroring the Job record, matching §6's "single embedded relational store
// keyed by job id".
package sqlstore

import (
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jontk/melon/internal/job"
	melonerrors "github.com/jontk/melon/pkg/errors"
)

// jobRow is the gorm model backing the jobs table.
type jobRow struct {
	ID             uint64 `gorm:"primaryKey"`
	User           string
	ScriptPath     string
	ScriptArgs     string // JSON-encoded []string
	CPUCount       uint32
	MemoryBytes    uint64
	TimeMinutes    uint32
	SubmitTime     int64
	StartTime      *int64
	StopTime       *int64
	Status         string
	AssignedNodeID string
}

func (jobRow) TableName() string { return "jobs" }

// Store is a store.JobRepository backed by a sqlite database file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates the jobs table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "open sqlite store", err)
	}

	if err := db.AutoMigrate(&jobRow{}); err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "migrate jobs table", err)
	}

	return &Store{db: db}, nil
}

// Put writes through j's full state, inserting or updating the row at j.ID.
func (s *Store) Put(j *job.Job) error {
	row, err := toRow(j)
	if err != nil {
		return err
	}

	if err := s.db.Save(row).Error; err != nil {
		return melonerrors.Wrap(melonerrors.Internal, "write job row", err)
	}
	return nil
}

// Get returns the record for id, or ok=false if unknown.
func (s *Store) Get(id uint64) (*job.Job, bool, error) {
	var row jobRow
	err := s.db.First(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, melonerrors.Wrap(melonerrors.Internal, "read job row", err)
	}

	j, err := fromRow(&row)
	if err != nil {
		return nil, false, err
	}
	return j, true, nil
}

// List returns every job in ascending id order.
func (s *Store) List() ([]*job.Job, error) {
	var rows []jobRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "list job rows", err)
	}

	sort.Slice(rows, func(i, k int) bool { return rows[i].ID < rows[k].ID })

	jobs := make([]*job.Job, 0, len(rows))
	for i := range rows {
		j, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
