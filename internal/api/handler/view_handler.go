package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// ViewHandler renders the gated portal views. Every view relays the backend
// document for the confirmed user; routes must sit behind middleware.Protected.
type ViewHandler struct{}

func NewViewHandler() *ViewHandler {
	return &ViewHandler{}
}

type homeResponse struct {
	User     domain.User `json:"user"`
	Sections []string    `json:"sections"`
	Toast    string      `json:"toast,omitempty"`
}

// sections lists the views a role may open from the home page.
var sections = map[domain.Role][]string{
	domain.RolePatient: {"/clinics", "/doctors", "/specializations", "/appointments", "/medical-records", "/payments", "/notifications"},
	domain.RoleDoctor:  {"/clinics", "/doctors", "/specializations", "/appointments", "/medical-records", "/notifications", "/doctor/schedules"},
	domain.RoleAdmin:   {"/clinics", "/doctors", "/specializations", "/appointments", "/payments", "/notifications", "/admin/users"},
}

// Home handles GET /.
func (h *ViewHandler) Home(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, homeResponse{
		User:     user,
		Sections: sections[user.Role],
		Toast:    popToast(c),
	})
}

// List returns a handler relaying the backend collection for resource. The
// request query string is forwarded as is.
func (h *ViewHandler) List(resource domain.Resource) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := ctxUser(c); err != nil {
			return err
		}
		sess, err := ctxSession(c)
		if err != nil {
			return err
		}
		raw, err := sess.Backend.List(c.Request().Context(), resource, c.QueryParams())
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, raw)
	}
}

// Schedules handles GET /doctor/schedules: the confirmed doctor's own slots.
func (h *ViewHandler) Schedules(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("doctor_id", strconv.FormatInt(user.ID, 10))
	raw, err := sess.Backend.List(c.Request().Context(), domain.ResourceSchedules, q)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

type appointmentRequest struct {
	DoctorID   int64  `json:"doctor_id"   validate:"required,gt=0"`
	ScheduleID int64  `json:"schedule_id" validate:"required,gt=0"`
	Date       string `json:"date"        validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason"      validate:"max=500"`
}

type appointmentPayload struct {
	PatientID  int64  `json:"patient_id"`
	DoctorID   int64  `json:"doctor_id"`
	ScheduleID int64  `json:"schedule_id"`
	Date       string `json:"appointment_date"`
	Reason     string `json:"reason,omitempty"`
}

// CreateAppointment handles POST /appointments. Patients book for
// themselves; doctors and admins book on behalf of patient_id.
func (h *ViewHandler) CreateAppointment(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req struct {
		appointmentRequest
		PatientID int64 `json:"patient_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req.appointmentRequest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if day, _ := time.Parse(time.DateOnly, req.Date); day.Before(today()) {
		return echo.NewHTTPError(http.StatusBadRequest, "date must not be in the past")
	}

	patientID := user.ID
	if user.Role != domain.RolePatient {
		if req.PatientID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
		}
		patientID = req.PatientID
	}

	payload, err := json.Marshal(appointmentPayload{
		PatientID:  patientID,
		DoctorID:   req.DoctorID,
		ScheduleID: req.ScheduleID,
		Date:       req.Date,
		Reason:     req.Reason,
	})
	if err != nil {
		return fmt.Errorf("encode appointment: %w", err)
	}

	raw, err := sess.Backend.Create(c.Request().Context(), domain.ResourceAppointments, payload)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusCreated, raw)
}

// CancelAppointment handles POST /appointments/:id/cancel.
func (h *ViewHandler) CancelAppointment(c echo.Context) error {
	if _, err := ctxUser(c); err != nil {
		return err
	}
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	raw, err := sess.Backend.Cancel(c.Request().Context(), domain.ResourceAppointments, id)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func today() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
