package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tenant-admin/pkg/logger"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records audit events. Callers on request paths use Record, which
// never fails the request.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CompanyID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of returning a failure.
func (s *Service) Record(ctx context.Context, e Event) {
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed",
			slog.String("type", string(e.Type)),
			slog.String("company_id", e.CompanyID),
			slog.Any("err", err),
		)
	}
}

// RecordSignUp records the creation of a company and its first administrator.
func (s *Service) RecordSignUp(ctx context.Context, companyID, userID, ip string) {
	s.Record(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypeSignUp,
		ActorUserID: userID,
		ActorRole:   "Administrator",
		IPAddress:   ip,
		TargetID:    userID,
		Message:     "company registered",
	})
}

// Actor identifies who performed a change.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

// RecordSAML records a change to a company's SAML configuration.
func (s *Service) RecordSAML(ctx context.Context, typ EventType, companyID string, actor Actor, configID, providerName string) {
	meta, _ := json.Marshal(map[string]string{"providerName": providerName})
	s.Record(ctx, Event{
		CompanyID:   companyID,
		Type:        typ,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		TargetID:    configID,
		Message:     string(typ),
		Metadata:    string(meta),
	})
}
