package saml

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tenant-admin/internal/identity"
	"tenant-admin/pkg/logger"
	"tenant-admin/pkg/utils"
)

// IdentityProvider registers SAML providers with the user pool.
// *identity.Cognito implements it.
type IdentityProvider interface {
	CreateSAMLProvider(ctx context.Context, name string, details map[string]string) error
	UpdateSAMLProvider(ctx context.Context, name string, details map[string]string) error
	DeleteSAMLProvider(ctx context.Context, name string) error
	EnableProviderOnClient(ctx context.Context, name string) error
}

// Service manages per-company SAML configurations. The user pool is written
// first and the local row inside the same transaction, so a failed provider
// call leaves no row behind.
type Service struct {
	db   *sql.DB
	idp  IdentityProvider
	meta MetadataChecker

	clock  func() time.Time
	random io.Reader
}

func NewService(db *sql.DB, idp IdentityProvider, meta MetadataChecker) *Service {
	return &Service{db: db, idp: idp, meta: meta, clock: time.Now, random: rand.Reader}
}

// Get returns the company's configuration whether or not it is enabled.
func (s *Service) Get(ctx context.Context, companyID string) (Configuration, error) {
	return getByCompany(ctx, s.db, companyID)
}

// ActiveProvider returns the provider name of the company's enabled
// configuration.
func (s *Service) ActiveProvider(ctx context.Context, companyID string) (string, error) {
	c, err := getEnabledByCompany(ctx, s.db, companyID)
	if err != nil {
		return "", err
	}
	return c.ProviderName, nil
}

// Configured reports whether the company has any SAML configuration.
func (s *Service) Configured(ctx context.Context, companyID string) (bool, error) {
	_, err := getByCompany(ctx, s.db, companyID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) providerDetails(ctx context.Context, metadataURL, metadataFile string) (map[string]string, error) {
	details := map[string]string{"IDPSignout": "true"}
	switch {
	case metadataURL != "":
		if err := s.meta.CheckURL(ctx, metadataURL); err != nil {
			return nil, err
		}
		details[identity.DetailMetadataURL] = metadataURL
	case metadataFile != "":
		if err := s.meta.CheckFile(metadataFile); err != nil {
			return nil, err
		}
		details[identity.DetailMetadataFile] = metadataFile
	default:
		return nil, ErrMetadataRequired
	}
	return details, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Configuration, error) {
	name := strings.TrimSpace(req.ProviderName)
	if name == "" {
		return Configuration{}, ErrProviderNameEmpty
	}
	if utf8.RuneCountInString(name) >= MaxProviderNameLen {
		return Configuration{}, ErrProviderNameTooLong
	}
	if req.MetadataURL == "" && req.MetadataFile == "" {
		return Configuration{}, ErrMetadataRequired
	}
	if ok, err := s.Configured(ctx, req.CompanyID); err != nil {
		return Configuration{}, err
	} else if ok {
		return Configuration{}, ErrAlreadyConfigured
	}

	details, err := s.providerDetails(ctx, req.MetadataURL, req.MetadataFile)
	if err != nil {
		return Configuration{}, err
	}
	details["RequestSigningAlgorithm"] = "rsa-sha256"

	unique, err := uniqueProviderName(name, s.random)
	if err != nil {
		return Configuration{}, err
	}

	now := s.clock().UTC()
	cfg := Configuration{
		ID:           uuid.NewString(),
		ProviderName: unique,
		UserID:       req.UserID,
		CompanyID:    req.CompanyID,
		IsEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := false
	err = utils.WithTx(ctx, s.db, utils.ReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.idp.CreateSAMLProvider(ctx, unique, details); err != nil {
			return err
		}
		created = true
		if err := s.idp.EnableProviderOnClient(ctx, unique); err != nil {
			return err
		}
		return insertConfig(ctx, tx, cfg)
	})
	if err != nil {
		if created {
			s.compensate(ctx, unique)
		}
		return Configuration{}, err
	}
	return cfg, nil
}

// compensate removes a provider registered by a Create that did not commit.
func (s *Service) compensate(ctx context.Context, name string) {
	if err := s.idp.DeleteSAMLProvider(context.WithoutCancel(ctx), name); err != nil {
		logger.From(ctx).Error("orphaned saml provider", slog.String("provider", name), slog.Any("err", err))
	}
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (Configuration, error) {
	if req.MetadataURL == "" && req.MetadataFile == "" {
		return Configuration{}, ErrMetadataRequired
	}
	if _, err := getEnabledByCompany(ctx, s.db, req.CompanyID); err != nil {
		return Configuration{}, err
	}
	details, err := s.providerDetails(ctx, req.MetadataURL, req.MetadataFile)
	if err != nil {
		return Configuration{}, err
	}

	var out Configuration
	err = utils.WithTx(ctx, s.db, utils.ReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		cfg, err := lockEnabledByCompany(ctx, tx, req.CompanyID)
		if err != nil {
			return err
		}
		if err := s.idp.UpdateSAMLProvider(ctx, cfg.ProviderName, details); err != nil {
			return err
		}
		cfg.UpdatedAt = s.clock().UTC()
		if err := touchConfig(ctx, tx, cfg.ID, cfg.UpdatedAt); err != nil {
			return err
		}
		out = cfg
		return nil
	})
	if err != nil {
		return Configuration{}, err
	}
	return out, nil
}

// Delete removes the provider from the user pool, then the local row. A
// provider already gone from the pool is not an error.
func (s *Service) Delete(ctx context.Context, companyID string) (Configuration, error) {
	cfg, err := getByCompany(ctx, s.db, companyID)
	if err != nil {
		return Configuration{}, err
	}
	if err := s.idp.DeleteSAMLProvider(ctx, cfg.ProviderName); err != nil && !identity.IsCode(err, identity.CodeResourceNotFound) {
		return Configuration{}, err
	}
	if err := deleteConfig(ctx, s.db, cfg.ID); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
