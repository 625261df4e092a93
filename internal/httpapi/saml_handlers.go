package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/audit"
	"tenant-admin/internal/auth"
	"tenant-admin/internal/saml"
	"tenant-admin/internal/session"
)

type createSAMLRequest struct {
	ProviderName     string `json:"providerName" binding:"required"`
	MetadataURL      string `json:"metadataUrl"`
	MetadataX509File string `json:"metadataX509File"`
}

type updateSAMLRequest struct {
	MetadataURL      string `json:"metadataUrl"`
	MetadataX509File string `json:"metadataX509File"`
}

func (h Handlers) principal(c *gin.Context) (session.Principal, bool) {
	p, ok := auth.FromGin(c)
	if !ok || p.Company.ID == "" {
		fail(c, session.ErrSessionInvalid)
		return session.Principal{}, false
	}
	return p, true
}

func (h Handlers) record(c *gin.Context, typ audit.EventType, p session.Principal, cfg saml.Configuration) {
	if h.Audit == nil {
		return
	}
	h.Audit.RecordSAML(c.Request.Context(), typ, p.Company.ID, audit.Actor{
		UserID: p.ID,
		Role:   string(p.ActiveRole()),
		IP:     c.ClientIP(),
	}, cfg.ID, cfg.ProviderName)
}

func (h Handlers) GetSAMLConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	cfg, err := h.SAML.Get(c.Request.Context(), p.Company.ID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"config": cfg}, "")
}

func (h Handlers) CreateSAMLConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req createSAMLRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	cfg, err := h.SAML.Create(c.Request.Context(), saml.CreateRequest{
		ProviderName: req.ProviderName,
		MetadataURL:  req.MetadataURL,
		MetadataFile: req.MetadataX509File,
		UserID:       p.ID,
		CompanyID:    p.Company.ID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.record(c, audit.EventTypeSAMLCreated, p, cfg)
	respond(c, http.StatusCreated, gin.H{"config": cfg}, "SAML configuration created")
}

func (h Handlers) UpdateSAMLConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req updateSAMLRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	cfg, err := h.SAML.Update(c.Request.Context(), saml.UpdateRequest{
		CompanyID:    p.Company.ID,
		MetadataURL:  req.MetadataURL,
		MetadataFile: req.MetadataX509File,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.record(c, audit.EventTypeSAMLUpdated, p, cfg)
	respond(c, http.StatusOK, gin.H{"config": cfg}, "SAML configuration updated")
}

func (h Handlers) DeleteSAMLConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	cfg, err := h.SAML.Delete(c.Request.Context(), p.Company.ID)
	if err != nil {
		fail(c, err)
		return
	}
	h.record(c, audit.EventTypeSAMLDeleted, p, cfg)
	respond(c, http.StatusOK, nil, "SAML configuration deleted")
}
