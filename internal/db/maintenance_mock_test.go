package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// withMockDB routes sqlOpenFunc to a sqlmock connection for one test.
func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	orig := sqlOpenFunc
	sqlOpenFunc = func(driverName, dsn string) (*sql.DB, error) { return dbMock, nil }
	t.Cleanup(func() {
		sqlOpenFunc = orig
		_ = dbMock.Close()
	})
	return mock
}

func TestRunDBMaintenance_WithMock(t *testing.T) {
	fail := errors.New("boom")
	tests := []struct {
		name          string
		dbType        string
		skipIntegrity bool
		expect        func(m sqlmock.Sqlmock)
		wantErr       bool
	}{
		{
			name:   "sqlite",
			dbType: TypeSQLite,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("PRAGMA optimize").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec(`PRAGMA wal_checkpoint\(`).WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectQuery("PRAGMA integrity_check").WillReturnRows(sqlmock.NewRows([]string{"integrity_check"}).AddRow("ok"))
			},
		},
		{
			name:          "sqlite skip integrity, optimize failure ignored",
			dbType:        TypeSQLite,
			skipIntegrity: true,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("PRAGMA optimize").WillReturnError(fail)
				m.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec(`PRAGMA wal_checkpoint\(`).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name:   "sqlite corrupt",
			dbType: TypeSQLite,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("PRAGMA optimize").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec(`PRAGMA wal_checkpoint\(`).WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectQuery("PRAGMA integrity_check").WillReturnRows(sqlmock.NewRows([]string{"integrity_check"}).AddRow("row 3 missing from index"))
			},
			wantErr: true,
		},
		{
			name:   "sqlite vacuum failure",
			dbType: TypeSQLite,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("PRAGMA optimize").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec("VACUUM").WillReturnError(fail)
			},
			wantErr: true,
		},
		{
			name:   "postgres",
			dbType: TypePostgres,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("VACUUM ANALYZE").WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name:   "postgres failure",
			dbType: TypePostgres,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("VACUUM ANALYZE").WillReturnError(fail)
			},
			wantErr: true,
		},
		{
			name:   "mysql",
			dbType: TypeMySQL,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SHOW TABLES").WillReturnRows(sqlmock.NewRows([]string{"Tables_in_panelapp"}).AddRow("panels").AddRow("activities"))
				m.ExpectExec("OPTIMIZE TABLE `panels`").WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec("OPTIMIZE TABLE `activities`").WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name:   "mysql optimize failure",
			dbType: TypeMySQL,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SHOW TABLES").WillReturnRows(sqlmock.NewRows([]string{"Tables_in_panelapp"}).AddRow("panels"))
				m.ExpectExec("OPTIMIZE TABLE `panels`").WillReturnError(fail)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := withMockDB(t)
			tt.expect(mock)
			err := RunDBMaintenance(context.Background(), tt.dbType, "dsn", tt.skipIntegrity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunDBMaintenance error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}
