// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/pkg/errutil"
)

// stubMigrate implements migrateIface with canned results.
type stubMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	version        uint
	dirty          bool
	versionErr     error
	forceErr       error
	closeSourceErr error
	closeDBErr     error

	stepsArg int
	forceArg int
}

func (s *stubMigrate) Up() error   { return s.upErr }
func (s *stubMigrate) Down() error { return s.downErr }
func (s *stubMigrate) Steps(n int) error {
	s.stepsArg = n
	return s.stepsErr
}
func (s *stubMigrate) Version() (uint, bool, error) { return s.version, s.dirty, s.versionErr }
func (s *stubMigrate) Force(v int) error {
	s.forceArg = v
	return s.forceErr
}
func (s *stubMigrate) Close() (error, error) { return s.closeSourceErr, s.closeDBErr }

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@db:5432/warden", want: "pgx5://u:p@db:5432/warden"},
		{in: "postgresql://db/warden?sslmode=disable", want: "pgx5://db/warden?sslmode=disable"},
		{in: "pgx5://db/warden", want: "pgx5://db/warden"},
		{in: "mysql://db/warden", want: "mysql://db/warden"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MigrateURL(tt.in))
		})
	}
}

func TestNewMigrator_UnknownScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/warden")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_UpTreatsNoChangeAsSuccess(t *testing.T) {
	m := &Migrator{m: &stubMigrate{upErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
}

func TestMigrator_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		stub *stubMigrate
		run  func(*Migrator) error
		code string
	}{
		{name: "up", stub: &stubMigrate{upErr: boom}, run: (*Migrator).Up, code: "MIGRATION_UP_FAILED"},
		{name: "down", stub: &stubMigrate{downErr: boom}, run: (*Migrator).Down, code: "MIGRATION_DOWN_FAILED"},
		{
			name: "steps",
			stub: &stubMigrate{stepsErr: boom},
			run:  func(m *Migrator) error { return m.Steps(2) },
			code: "MIGRATION_STEPS_FAILED",
		},
		{
			name: "force",
			stub: &stubMigrate{forceErr: boom},
			run:  func(m *Migrator) error { return m.Force(1) },
			code: "MIGRATION_FORCE_FAILED",
		},
		{
			name: "force negative",
			stub: &stubMigrate{},
			run:  func(m *Migrator) error { return m.Force(-1) },
			code: "INVALID_VERSION",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.stub})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_DownAndStepsTreatNoChangeAsSuccess(t *testing.T) {
	stub := &stubMigrate{downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}
	m := &Migrator{m: stub}
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(-1))
	assert.Equal(t, -1, stub.stepsArg)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("empty database", func(t *testing.T) {
		m := &Migrator{m: &stubMigrate{versionErr: migrate.ErrNilVersion}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		m := &Migrator{m: &stubMigrate{version: 2, dirty: true}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &stubMigrate{versionErr: errors.New("conn reset")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	stub := &stubMigrate{}
	require.NoError(t, (&Migrator{m: stub}).Force(1))
	assert.Equal(t, 1, stub.forceArg)
}

func TestMigrator_Close(t *testing.T) {
	srcErr := errors.New("source")
	dbErr := errors.New("database")
	tests := []struct {
		name      string
		stub      *stubMigrate
		component string
	}{
		{name: "source", stub: &stubMigrate{closeSourceErr: srcErr}, component: "source"},
		{name: "database", stub: &stubMigrate{closeDBErr: dbErr}, component: "database"},
		{name: "both", stub: &stubMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}, component: "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.stub}).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, (&Migrator{m: &stubMigrate{}}).Close())
}

func TestMigrator_Pending(t *testing.T) {
	m := &Migrator{m: &stubMigrate{version: 1}}
	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, pending)

	m = &Migrator{m: &stubMigrate{versionErr: migrate.ErrNilVersion}}
	pending, err = m.Pending()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, pending)
}
