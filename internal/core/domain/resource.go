package domain

// Resource names a backend collection the portal passes through.
type Resource string

const (
	ResourceClinics         Resource = "clinics"
	ResourceDoctors         Resource = "doctors"
	ResourceSpecializations Resource = "specializations"
	ResourceSchedules       Resource = "schedules"
	ResourceAppointments    Resource = "appointments"
	ResourceMedicalRecords  Resource = "medical-records"
	ResourcePayments        Resource = "payments"
	ResourceNotifications   Resource = "notifications"
	ResourceUsers           Resource = "users"
)

var resourcePaths = map[Resource]string{
	ResourceClinics:         "/api/clinics",
	ResourceDoctors:         "/api/doctors",
	ResourceSpecializations: "/api/specializations",
	ResourceSchedules:       "/api/schedules",
	ResourceAppointments:    "/api/appointments",
	ResourceMedicalRecords:  "/api/medical-records",
	ResourcePayments:        "/api/payments",
	ResourceNotifications:   "/api/notifications",
	ResourceUsers:           "/api/users",
}

// Path returns the backend collection path for r.
func (r Resource) Path() (string, bool) {
	p, ok := resourcePaths[r]
	return p, ok
}
