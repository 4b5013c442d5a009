package devbackend

type clinic struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type doctor struct {
	ID               int64  `json:"id"`
	FullName         string `json:"full_name"`
	ClinicID         int64  `json:"clinic_id"`
	SpecializationID int64  `json:"specialization_id"`
}

type specialization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type schedule struct {
	ID        int64  `json:"id"`
	DoctorID  int64  `json:"doctor_id"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// catalog is the read-only reference data served to every role.
type catalog struct {
	Clinics         []clinic
	Doctors         []doctor
	Specializations []specialization
	Schedules       []schedule
}

// defaultCatalog matches DefaultSeeds: the seeded doctor has id 2.
func defaultCatalog() catalog {
	return catalog{
		Clinics: []clinic{
			{ID: 1, Name: "Central Clinic", Address: "1 Main Street"},
			{ID: 2, Name: "Riverside Clinic", Address: "12 River Road"},
		},
		Doctors: []doctor{
			{ID: 2, FullName: "Dana Doctor", ClinicID: 1, SpecializationID: 1},
		},
		Specializations: []specialization{
			{ID: 1, Name: "General Practice"},
			{ID: 2, Name: "Cardiology"},
			{ID: 3, Name: "Dermatology"},
		},
		Schedules: []schedule{
			{ID: 1, DoctorID: 2, Weekday: "monday", StartTime: "09:00", EndTime: "13:00"},
			{ID: 2, DoctorID: 2, Weekday: "wednesday", StartTime: "14:00", EndTime: "18:00"},
			{ID: 3, DoctorID: 7, Weekday: "friday", StartTime: "09:00", EndTime: "12:00"},
		},
	}
}
