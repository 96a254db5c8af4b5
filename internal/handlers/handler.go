package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

// Handler holds the services the HTTP endpoints delegate to. Handlers only
// translate between HTTP and service calls; every failure goes to
// middleware.ErrorHandler via c.Error.
type Handler struct {
	credentials    *services.Credentials
	tokens         *utils.TokenManager
	patients       *services.Patients
	appointments   *services.Appointments
	metrics        *metrics.Collector
	maxUploadBytes int64
	log            zerolog.Logger
}

type Deps struct {
	Credentials    *services.Credentials
	Tokens         *utils.TokenManager
	Patients       *services.Patients
	Appointments   *services.Appointments
	Metrics        *metrics.Collector
	MaxUploadBytes int64
	Log            zerolog.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		credentials:    d.Credentials,
		tokens:         d.Tokens,
		patients:       d.Patients,
		appointments:   d.Appointments,
		metrics:        d.Metrics,
		maxUploadBytes: d.MaxUploadBytes,
		log:            d.Log,
	}
}

var errMalformedBody = apperr.Validation("request body must be valid JSON")

// bindJSON decodes the body into dst, recording a validation error on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(errMalformedBody)
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}
