package biometric

import (
	"errors"
	"strings"
	"time"
)

// Employee is a record as returned by the gateway.
type Employee struct {
	ID         Field `json:"id"`
	Code       Field `json:"employee_code"`
	Name       Field `json:"name"`
	Role       Field `json:"role"`
	Department Field `json:"department"`
	HireDate   Field `json:"hire_date"`
	Contact    Field `json:"contact"`
	Active     *bool `json:"active,omitempty"`
}

// WorkerProfile is the flat shape imported into the workers table.
type WorkerProfile struct {
	EmployeeCode string
	Name         string
	Role         string
	Department   string
	Specialty    string
	Email        string
	Phone        string
	HireDate     *time.Time
	Active       bool
}

// ErrMissingCode is returned for records that cannot be keyed.
var ErrMissingCode = errors.New("employee has no code or id")

var hireDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Normalize flattens a gateway record.
func Normalize(e Employee) (WorkerProfile, error) {
	p := WorkerProfile{Active: true}
	if e.Active != nil {
		p.Active = *e.Active
	}

	p.EmployeeCode = e.Code.Value("code", "value", "id")
	if p.EmployeeCode == "" {
		p.EmployeeCode = e.ID.Value("id", "value")
	}
	if p.EmployeeCode == "" {
		return WorkerProfile{}, ErrMissingCode
	}

	p.Name = e.Name.Value("full_name", "name", "display")
	if p.Name == "" && e.Name.Kind == FieldObject {
		p.Name = strings.TrimSpace(e.Name.Lookup("first_name", "first") + " " + e.Name.Lookup("last_name", "last"))
	}
	if p.Name == "" {
		p.Name = p.EmployeeCode
	}

	p.Role = e.Role.Value("name", "title")
	p.Department = e.Department.Value("name", "title", "code")
	p.Specialty = e.Role.Lookup("specialty", "skill")
	if p.Specialty == "" {
		p.Specialty = Slug(p.Role)
	}

	switch e.Contact.Kind {
	case FieldText:
		if strings.Contains(e.Contact.Text, "@") {
			p.Email = e.Contact.Text
		} else {
			p.Phone = e.Contact.Text
		}
	case FieldObject:
		p.Email = e.Contact.Lookup("email", "mail")
		p.Phone = e.Contact.Lookup("phone", "mobile", "tel")
	}

	if raw := e.HireDate.Value("date", "value"); raw != "" {
		for _, layout := range hireDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
				p.HireDate = &d
				break
			}
		}
	}
	return p, nil
}

// Slug lowercases s and joins its words with underscores.
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}
