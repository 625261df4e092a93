package saml

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configCols = []string{"id", "provider_name", "user_id", "company_id", "is_enabled", "created_at", "updated_at"}

type fakeIdP struct {
	created   map[string]map[string]string
	updated   map[string]map[string]string
	deleted   []string
	enabled   []string
	createErr error
	enableErr error
	deleteErr error
}

func newFakeIdP() *fakeIdP {
	return &fakeIdP{created: map[string]map[string]string{}, updated: map[string]map[string]string{}}
}

func (f *fakeIdP) CreateSAMLProvider(_ context.Context, name string, details map[string]string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created[name] = details
	return nil
}

func (f *fakeIdP) UpdateSAMLProvider(_ context.Context, name string, details map[string]string) error {
	f.updated[name] = details
	return nil
}

func (f *fakeIdP) DeleteSAMLProvider(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

func (f *fakeIdP) EnableProviderOnClient(_ context.Context, name string) error {
	f.enabled = append(f.enabled, name)
	return f.enableErr
}

type fakeMeta struct {
	urlErr  error
	fileErr error
	calls   int
}

func (f *fakeMeta) CheckURL(context.Context, string) error {
	f.calls++
	return f.urlErr
}

func (f *fakeMeta) CheckFile(string) error {
	f.calls++
	return f.fileErr
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeIdP, *fakeMeta) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idp, meta := newFakeIdP(), &fakeMeta{}
	s := NewService(db, idp, meta)
	s.clock = func() time.Time { return fixedNow }
	s.random = bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))
	return s, mock, idp, meta
}

func TestCreate_RegistersProviderAndInserts(t *testing.T) {
	s, mock, idp, _ := newTestService(t)

	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO saml_configuration").
		WithArgs(sqlmock.AnyArg(), "Acme-ababababababab", "u-1", "co-1", true, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg, err := s.Create(context.Background(), CreateRequest{
		ProviderName: "Acme", MetadataURL: "https://idp.example.com/metadata", UserID: "u-1", CompanyID: "co-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme-ababababababab", cfg.ProviderName)
	assert.True(t, cfg.IsEnabled)
	assert.Equal(t, map[string]string{
		"MetadataURL":             "https://idp.example.com/metadata",
		"IDPSignout":              "true",
		"RequestSigningAlgorithm": "rsa-sha256",
	}, idp.created["Acme-ababababababab"])
	assert.Equal(t, []string{"Acme-ababababababab"}, idp.enabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ValidationHappensBeforeExternalCalls(t *testing.T) {
	cases := map[string]struct {
		req  CreateRequest
		want error
	}{
		"32 char name": {CreateRequest{ProviderName: "abcdefghijklmnopqrstuvwxyz012345", MetadataURL: "https://x"}, ErrProviderNameTooLong},
		"empty name":   {CreateRequest{ProviderName: "  ", MetadataURL: "https://x"}, ErrProviderNameEmpty},
		"no metadata":  {CreateRequest{ProviderName: "Acme"}, ErrMetadataRequired},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, mock, idp, meta := newTestService(t)
			_, err := s.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Empty(t, idp.created)
			assert.Zero(t, meta.calls)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreate_31CharNameFitsAfterSuffix(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	name := "abcdefghijklmnopqrstuvwxyz01234"
	require.Len(t, name, 31)

	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO saml_configuration").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg, err := s.Create(context.Background(), CreateRequest{ProviderName: name, MetadataFile: "<x/>", CompanyID: "co-1"})
	require.NoError(t, err)
	assert.Less(t, len(cfg.ProviderName), MaxProviderNameLen)
	assert.Contains(t, idp.created, cfg.ProviderName)
	assert.Equal(t, "<x/>", idp.created[cfg.ProviderName]["MetadataFile"])
}

func TestCreate_NameLengthCountsCharacters(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	name := strings.Repeat("é", 17)
	require.Greater(t, len(name), MaxProviderNameLen)

	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO saml_configuration").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg, err := s.Create(context.Background(), CreateRequest{ProviderName: name, MetadataFile: "<x/>", CompanyID: "co-1"})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(cfg.ProviderName))
	assert.Less(t, utf8.RuneCountInString(cfg.ProviderName), MaxProviderNameLen)
	assert.Contains(t, idp.created, cfg.ProviderName)

	_, err = s.Create(context.Background(), CreateRequest{ProviderName: strings.Repeat("é", MaxProviderNameLen), MetadataFile: "<x/>", CompanyID: "co-1"})
	assert.ErrorIs(t, err, ErrProviderNameTooLong)
}

func TestCreate_AlreadyConfigured(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(configCols).AddRow("cfg-1", "Acme-1234", "u-1", "co-1", false, fixedNow, fixedNow))

	_, err := s.Create(context.Background(), CreateRequest{ProviderName: "Acme", MetadataURL: "https://x", CompanyID: "co-1"})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
	assert.Empty(t, idp.created)
}

func TestCreate_InvalidMetadataURL(t *testing.T) {
	s, mock, idp, meta := newTestService(t)
	meta.urlErr = ErrInvalidMetadataURL
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))

	_, err := s.Create(context.Background(), CreateRequest{ProviderName: "Acme", MetadataURL: "https://x", CompanyID: "co-1"})
	assert.ErrorIs(t, err, ErrInvalidMetadataURL)
	assert.Equal(t, "Invalid metadata URL provided.", err.Error())
	assert.Empty(t, idp.created)
}

func TestCreate_InsertConflictRemovesProvider(t *testing.T) {
	s, mock, idp, _ := newTestService(t)

	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO saml_configuration").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), CreateRequest{ProviderName: "Acme", MetadataURL: "https://x", CompanyID: "co-1"})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
	assert.Equal(t, []string{"Acme-ababababababab"}, idp.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ProviderFailureRollsBack(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	idp.createErr = &smithy.GenericAPIError{Code: "DuplicateProviderException", Message: "dup"}

	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), CreateRequest{ProviderName: "Acme", MetadataURL: "https://x", CompanyID: "co-1"})
	require.Error(t, err)
	assert.Empty(t, idp.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_TouchesRow(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	created := fixedNow.Add(-24 * time.Hour)
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(configCols).AddRow("cfg-1", "Acme-1234", "u-1", "co-1", true, created, created)
	}

	mock.ExpectQuery("is_enabled = true").WithArgs("co-1").WillReturnRows(row())
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("co-1").WillReturnRows(row())
	mock.ExpectExec("UPDATE saml_configuration SET updated_at").WithArgs("cfg-1", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg, err := s.Update(context.Background(), UpdateRequest{CompanyID: "co-1", MetadataFile: "<EntityDescriptor/>"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, cfg.UpdatedAt)
	assert.Equal(t, map[string]string{"IDPSignout": "true", "MetadataFile": "<EntityDescriptor/>"}, idp.updated["Acme-1234"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_RequiresEnabledConfiguration(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	mock.ExpectQuery("is_enabled = true").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))

	_, err := s.Update(context.Background(), UpdateRequest{CompanyID: "co-1", MetadataURL: "https://x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, idp.updated)
}

func TestDelete(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(configCols).AddRow("cfg-1", "Acme-1234", "u-1", "co-1", true, fixedNow, fixedNow))
	mock.ExpectExec("DELETE FROM saml_configuration").WithArgs("cfg-1").WillReturnResult(sqlmock.NewResult(0, 1))

	cfg, err := s.Delete(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, "cfg-1", cfg.ID)
	assert.Equal(t, []string{"Acme-1234"}, idp.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_ProviderAlreadyGone(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	idp.deleteErr = &smithy.GenericAPIError{Code: "ResourceNotFoundException"}
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(configCols).AddRow("cfg-1", "Acme-1234", "u-1", "co-1", true, fixedNow, fixedNow))
	mock.ExpectExec("DELETE FROM saml_configuration").WithArgs("cfg-1").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.Delete(context.Background(), "co-1")
	require.NoError(t, err)
}

func TestDelete_Missing(t *testing.T) {
	s, mock, idp, _ := newTestService(t)
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-1").WillReturnRows(sqlmock.NewRows(configCols))

	_, err := s.Delete(context.Background(), "co-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, idp.deleted)
}

func TestActiveProviderAndConfigured(t *testing.T) {
	s, mock, _, _ := newTestService(t)
	mock.ExpectQuery("is_enabled = true").WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(configCols).AddRow("cfg-1", "Acme-1234", "u-1", "co-1", true, fixedNow, fixedNow))
	mock.ExpectQuery("FROM saml_configuration").WithArgs("co-2").WillReturnError(errors.New("conn reset"))

	name, err := s.ActiveProvider(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme-1234", name)

	_, err = s.Configured(context.Background(), "co-2")
	assert.Error(t, err)
}
