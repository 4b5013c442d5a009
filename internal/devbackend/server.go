package devbackend

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// Server is the dev backend's HTTP surface.
type Server struct {
	dir      *Directory
	issuer   *Issuer
	validate *validator.Validate
	catalog  catalog

	mu           sync.Mutex
	appointments []*appointment
	nextApptID   int64
}

func NewServer(dir *Directory, issuer *Issuer) *Server {
	return &Server{
		dir:      dir,
		issuer:   issuer,
		validate: validator.New(),
		catalog:  defaultCatalog(),
	}
}

// Router builds the Echo instance. mw runs before every route.
func (s *Server) Router(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(mw...)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/users/login", s.login)
	api.POST("/users/register", s.register)

	authed := api.Group("", Bearer(s.issuer))
	authed.GET("/users/me", s.me)
	authed.GET("/users", s.users, RequireRole(domain.RoleAdmin))
	authed.GET("/clinics", s.static(func(c catalog) any { return c.Clinics }))
	authed.GET("/doctors", s.static(func(c catalog) any { return c.Doctors }))
	authed.GET("/specializations", s.static(func(c catalog) any { return c.Specializations }))
	authed.GET("/schedules", s.schedules)
	authed.GET("/notifications", s.notifications)
	authed.GET("/medical-records", s.medicalRecords, RequireRole(domain.RolePatient, domain.RoleDoctor))
	authed.GET("/payments", s.payments, RequireRole(domain.RolePatient, domain.RoleAdmin))
	authed.GET("/appointments", s.listAppointments)
	authed.POST("/appointments", s.createAppointment)
	authed.PATCH("/appointments/:id/cancel", s.cancelAppointment)

	return e
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

type loginResponse struct {
	Token  string      `json:"token"`
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	acc, err := s.dir.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	return s.issue(c, http.StatusOK, acc)
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	acc, err := s.dir.Register(c.Request().Context(), req.Email, req.Password, req.FullName, domain.RolePatient)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return echo.NewHTTPError(http.StatusConflict, "user already exists")
		}
		return err
	}
	return s.issue(c, http.StatusCreated, acc)
}

func (s *Server) issue(c echo.Context, status int, acc Account) error {
	token, err := s.issuer.Issue(acc.User())
	if err != nil {
		return err
	}
	return c.JSON(status, loginResponse{Token: token, UserID: acc.ID, Role: acc.Role})
}

type meResponse struct {
	ID       int64       `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

func (s *Server) me(c echo.Context) error {
	user := c.Get(userKey).(domain.User)
	acc, ok := s.dir.Lookup(user.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	return c.JSON(http.StatusOK, meResponse{ID: acc.ID, Email: acc.Email, FullName: acc.FullName, Role: acc.Role})
}

func (s *Server) users(c echo.Context) error {
	accounts := s.dir.Accounts()
	out := make([]meResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, meResponse{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) static(pick func(catalog) any) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, pick(s.catalog))
	}
}

func (s *Server) schedules(c echo.Context) error {
	out := s.catalog.Schedules
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		out = make([]schedule, 0, len(s.catalog.Schedules))
		for _, sc := range s.catalog.Schedules {
			if sc.DoctorID == id {
				out = append(out, sc)
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) notifications(c echo.Context) error {
	user := c.Get(userKey).(domain.User)
	return c.JSON(http.StatusOK, []map[string]any{
		{"id": 1, "user_id": user.ID, "message": "Welcome to the clinic portal", "read": false},
	})
}

func (s *Server) medicalRecords(c echo.Context) error {
	user := c.Get(userKey).(domain.User)
	out := make([]map[string]any, 0, 1)
	switch user.Role {
	case domain.RolePatient:
		out = append(out, map[string]any{"id": 1, "patient_id": user.ID, "summary": "Annual check-up, no findings"})
	case domain.RoleDoctor:
		out = append(out, map[string]any{"id": 1, "doctor_id": user.ID, "summary": "Annual check-up, no findings"})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) payments(c echo.Context) error {
	user := c.Get(userKey).(domain.User)
	if user.Role == domain.RoleAdmin {
		return c.JSON(http.StatusOK, []map[string]any{
			{"id": 1, "amount": 45.0, "currency": "EUR", "status": "paid"},
			{"id": 2, "amount": 80.0, "currency": "EUR", "status": "pending"},
		})
	}
	return c.JSON(http.StatusOK, []map[string]any{
		{"id": 1, "patient_id": user.ID, "amount": 45.0, "currency": "EUR", "status": "paid"},
	})
}

// appointment is the backend's booking record.
type appointment struct {
	ID         int64     `json:"id"`
	PatientID  int64     `json:"patient_id"`
	DoctorID   int64     `json:"doctor_id"`
	ScheduleID int64     `json:"schedule_id"`
	Date       string    `json:"appointment_date"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type createAppointmentRequest struct {
	PatientID  int64  `json:"patient_id"       validate:"required,gt=0"`
	DoctorID   int64  `json:"doctor_id"        validate:"required,gt=0"`
	ScheduleID int64  `json:"schedule_id"      validate:"required,gt=0"`
	Date       string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason"`
}

// visible reports whether user may see or change a.
func visible(user domain.User, a *appointment) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleDoctor:
		return a.DoctorID == user.ID
	default:
		return a.PatientID == user.ID
	}
}

func (s *Server) listAppointments(c echo.Context) error {
	user := c.Get(userKey).(domain.User)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		if visible(user, a) {
			out = append(out, *a)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createAppointment(c echo.Context) error {
	user := c.Get(userKey).(domain.User)

	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if user.Role == domain.RolePatient && req.PatientID != user.ID {
		return echo.NewHTTPError(http.StatusForbidden, "patients book for themselves")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextApptID++
	a := &appointment{
		ID:         s.nextApptID,
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		ScheduleID: req.ScheduleID,
		Date:       req.Date,
		Reason:     req.Reason,
		Status:     "scheduled",
		CreatedAt:  time.Now().UTC(),
	}
	s.appointments = append(s.appointments, a)
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) cancelAppointment(c echo.Context) error {
	user := c.Get(userKey).(domain.User)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ID != id {
			continue
		}
		if !visible(user, a) {
			return echo.NewHTTPError(http.StatusForbidden, "not your appointment")
		}
		if a.Status == "cancelled" {
			return echo.NewHTTPError(http.StatusConflict, "appointment already cancelled")
		}
		a.Status = "cancelled"
		return c.JSON(http.StatusOK, a)
	}
	return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
}
