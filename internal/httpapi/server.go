// Package httpapi exposes the booking core over HTTP. The facade holds no
// session state of its own; every authenticated request carries an HS256
// token whose claims become the clinic.Session for that call.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionContextKey = "clinic_session"

// Server routes HTTP requests onto the booking and credential services.
type Server struct {
	logger      *zap.Logger
	bookings    *clinic.Service
	credentials *clinic.CredentialService
	cfg         Config
}

// NewServer wires a Server over validated configuration.
func NewServer(cfg Config, bookings *clinic.Service, credentials *clinic.CredentialService, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bookings == nil || credentials == nil {
		return nil, errors.New("booking and credential services are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger, bookings: bookings, credentials: credentials, cfg: cfg}, nil
}

// Router builds the gin engine with all routes attached.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/register", server.handleRegister)
	router.POST("/api/login", server.handleLogin)

	api := router.Group("/api")
	api.Use(server.sessionMiddleware())

	api.GET("/schedule/:date", server.handleSchedule)
	api.POST("/availabilities", server.handlePublishAvailability)
	api.POST("/doses", server.handleAddDoses)
	api.POST("/appointments", server.handleReserve)
	api.GET("/appointments", server.handleListAppointments)
	api.DELETE("/appointments/:id", server.handleCancel)

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("booking api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) sessionMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := bearerToken(ctx.GetHeader("Authorization"))
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session token"))
			return
		}
		session, err := parseSessionToken(server.cfg, raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session token"))
			return
		}
		ctx.Set(sessionContextKey, session)
		ctx.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func getSession(ctx *gin.Context) (clinic.Session, bool) {
	value, ok := ctx.Get(sessionContextKey)
	if !ok {
		return clinic.Session{}, false
	}
	session, ok := value.(clinic.Session)
	return session, ok
}

type credentialRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type availabilityRequest struct {
	Date string `json:"date"`
}

type dosesRequest struct {
	Vaccine string `json:"vaccine"`
	Doses   int64  `json:"doses"`
}

type reserveRequest struct {
	Date    string `json:"date"`
	Vaccine string `json:"vaccine"`
}

type appointmentPayload struct {
	ID        int64  `json:"id"`
	Patient   string `json:"patient"`
	Caregiver string `json:"caregiver"`
	Vaccine   string `json:"vaccine"`
	Date      string `json:"date"`
}

func appointmentJSON(appointment clinic.Appointment) appointmentPayload {
	return appointmentPayload{
		ID:        appointment.ID.Int64(),
		Patient:   appointment.Patient.String(),
		Caregiver: appointment.Caregiver.String(),
		Vaccine:   appointment.Vaccine.String(),
		Date:      appointment.Date.String(),
	}
}

func (server *Server) handleRegister(ctx *gin.Context) {
	var request credentialRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	role, err := clinic.ParseRole(request.Role)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	username, err := clinic.NewUsername(request.Username)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if request.Password == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "password is required"))
		return
	}
	if err := server.credentials.Register(ctx.Request.Context(), role, username, request.Password); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"role": role.String(), "username": username.String()})
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request credentialRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	role, err := clinic.ParseRole(request.Role)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	username, err := clinic.NewUsername(request.Username)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	account, err := server.credentials.Verify(ctx.Request.Context(), role, username, request.Password)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	token, err := mintSessionToken(server.cfg, account, time.Now().UTC())
	if err != nil {
		server.logger.Error("token mint failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "could not establish session"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     account.Role.String(),
		"username": account.Username.String(),
	})
}

func (server *Server) handleSchedule(ctx *gin.Context) {
	date, err := clinic.NewScheduleDate(ctx.Param("date"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	schedule, err := server.bookings.ScheduleForDate(ctx.Request.Context(), date)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	caregivers := make([]string, 0, len(schedule.Caregivers))
	for _, caregiver := range schedule.Caregivers {
		caregivers = append(caregivers, caregiver.String())
	}
	vaccines := make([]gin.H, 0, len(schedule.Vaccines))
	for _, vaccine := range schedule.Vaccines {
		vaccines = append(vaccines, gin.H{"name": vaccine.Name.String(), "doses": vaccine.Doses})
	}
	ctx.JSON(http.StatusOK, gin.H{
		"date":       date.String(),
		"caregivers": caregivers,
		"vaccines":   vaccines,
	})
}

func (server *Server) handlePublishAvailability(ctx *gin.Context) {
	session, ok := getSession(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request availabilityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	date, err := clinic.NewScheduleDate(request.Date)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.bookings.PublishAvailability(ctx.Request.Context(), session, date); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"caregiver": session.Username.String(), "date": date.String()})
}

func (server *Server) handleAddDoses(ctx *gin.Context) {
	session, ok := getSession(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request dosesRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	vaccine, err := clinic.NewVaccineName(request.Vaccine)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	doses, err := clinic.NewDoseCount(request.Doses)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.bookings.AddDoses(ctx.Request.Context(), session, vaccine, doses); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"vaccine": vaccine.String()})
}

func (server *Server) handleReserve(ctx *gin.Context) {
	session, ok := getSession(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request reserveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	date, err := clinic.NewScheduleDate(request.Date)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	vaccine, err := clinic.NewVaccineName(request.Vaccine)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	appointment, err := server.bookings.Reserve(ctx.Request.Context(), session, date, vaccine)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"appointment": appointmentJSON(appointment)})
}

func (server *Server) handleCancel(ctx *gin.Context) {
	session, ok := getSession(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	rawID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "appointment id must be numeric"))
		return
	}
	appointmentID, err := clinic.NewAppointmentID(rawID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if err := server.bookings.Cancel(ctx.Request.Context(), session, appointmentID); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cancelled": appointmentID.Int64()})
}

func (server *Server) handleListAppointments(ctx *gin.Context) {
	session, ok := getSession(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	appointments, err := server.bookings.Appointments(ctx.Request.Context(), session)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]appointmentPayload, 0, len(appointments))
	for _, appointment := range appointments {
		payload = append(payload, appointmentJSON(appointment))
	}
	ctx.JSON(http.StatusOK, gin.H{"appointments": payload})
}

func (server *Server) respondError(ctx *gin.Context, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		server.logger.Error("request failed", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, clinic.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, clinic.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, clinic.ErrNoCaregiverAvailable):
		return http.StatusConflict, "no_caregiver_available"
	case errors.Is(err, clinic.ErrInsufficientDoses):
		return http.StatusConflict, "insufficient_doses"
	case errors.Is(err, clinic.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, clinic.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, clinic.ErrStoreUnavailable):
		return http.StatusBadGateway, "store_unavailable"
	case errors.Is(err, clinic.ErrInvalidRole),
		errors.Is(err, clinic.ErrInvalidUsername),
		errors.Is(err, clinic.ErrInvalidDate),
		errors.Is(err, clinic.ErrInvalidVaccineName),
		errors.Is(err, clinic.ErrInvalidDoseCount),
		errors.Is(err, clinic.ErrInvalidAppointmentID):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
