package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-admin/internal/httpapi"
	"tenant-admin/internal/rbac"
	"tenant-admin/internal/tenant"
)

type routeDeps struct {
	handlers  httpapi.Handlers
	session   gin.HandlerFunc
	authLimit gin.HandlerFunc
	samlLock  gin.HandlerFunc
	health    gin.HandlerFunc
	metrics   http.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", d.health)
	r.GET("/metrics", gin.WrapH(d.metrics))

	a := r.Group("/auth")
	a.Use(d.authLimit)
	{
		a.POST("/sign-up", h.SignUp)
		a.POST("/confirm-sign-up", h.ConfirmSignUp)
		a.POST("/resend-confirm-code", h.ResendConfirmCode)
		a.POST("/sign-in", h.SignIn)
		a.POST("/respond-to-challenge", h.RespondToChallenge)
		a.POST("/check-sign-in-options", h.CheckSignInOptions)
		a.POST("/saml/sign-in", h.SAMLSignIn)
		a.GET("/saml/callback", h.SAMLCallback)
	}

	// protected
	p := r.Group("/")
	p.Use(d.session)
	{
		p.GET("/self", h.Self)

		sc := p.Group("/saml/configure")
		sc.Use(rbac.RequireCompany())
		sc.GET("", h.GetSAMLConfig)

		// Mutations: administrators only, one at a time per company.
		admin := []gin.HandlerFunc{rbac.RequireAnyRole(tenant.RoleAdministrator), d.samlLock}
		sc.POST("", append(admin, h.CreateSAMLConfig)...)
		sc.PATCH("", append(admin, h.UpdateSAMLConfig)...)
		sc.DELETE("", append(admin, h.DeleteSAMLConfig)...)
	}
}
