package biometric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/config"
)

func TestFieldDecodesBothShapes(t *testing.T) {
	var e Employee
	raw := `{
		"id": 1042,
		"name": {"first_name": "Rosa", "last_name": "Parra"},
		"role": "Pattern Cutter",
		"department": {"name": "Cutting", "code": "CUT"},
		"hire_date": {"date": "2021-03-15"},
		"contact": "rosa@example.com"
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, FieldText, e.ID.Kind)
	assert.Equal(t, "1042", e.ID.Text)
	assert.Equal(t, FieldObject, e.Name.Kind)
	assert.Equal(t, FieldText, e.Role.Kind)
	assert.True(t, e.Code.IsEmpty())
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Employee
		want WorkerProfile
	}{
		{
			name: "object fields",
			in: Employee{
				Code:       Text("E-7"),
				Name:       Object(map[string]any{"first_name": "Rosa", "last_name": "Parra"}),
				Role:       Object(map[string]any{"title": "Senior Cutter", "specialty": "cutting"}),
				Department: Object(map[string]any{"name": "Cutting"}),
				Contact:    Object(map[string]any{"email": "rosa@example.com", "phone": "+34 600"}),
				HireDate:   Text("2021-03-15"),
			},
			want: WorkerProfile{
				EmployeeCode: "E-7", Name: "Rosa Parra", Role: "Senior Cutter", Department: "Cutting",
				Specialty: "cutting", Email: "rosa@example.com", Phone: "+34 600", Active: true,
			},
		},
		{
			name: "text fields fall back to id",
			in: Employee{
				ID:      Text("88"),
				Name:    Text("Tom"),
				Role:    Text("Quality Check"),
				Contact: Text("+1 555 0100"),
			},
			want: WorkerProfile{
				EmployeeCode: "88", Name: "Tom", Role: "Quality Check", Specialty: "quality_check",
				Phone: "+1 555 0100", Active: true,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			hire := got.HireDate
			got.HireDate = nil
			assert.Equal(t, tc.want, got)
			if !tc.in.HireDate.IsEmpty() {
				require.NotNil(t, hire)
				assert.Equal(t, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), *hire)
			}
		})
	}

	_, err := Normalize(Employee{Name: Text("nobody")})
	assert.ErrorIs(t, err, ErrMissingCode)

	inactive := false
	p, err := Normalize(Employee{Code: Text("X"), Active: &inactive})
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, "X", p.Name)
}

func TestClientGetEmployees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/employees":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"A"},{"employee_code":"B-2","name":{"full_name":"B"}}]}`))
		case "/api/employees/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"A"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(config.Config{Biometric: config.Biometric{BaseURL: srv.URL + "/api/", APIKey: "secret", Timeout: time.Second, PageSize: 50}})

	list, err := client.GetEmployees(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B-2", list[1].Code.Text)

	one, err := client.GetEmployee(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "A", one.Name.Text)

	_, err = client.GetEmployee(context.Background(), "404")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestFieldLookupFormatsNumbers(t *testing.T) {
	f := Object(map[string]any{"rate": 12.5, "code": float64(12345678901), "whole": float64(42), "empty": ""})

	assert.Equal(t, "12.5", f.Lookup("rate"))
	assert.Equal(t, "12345678901", f.Lookup("code"))
	assert.Equal(t, "42", f.Lookup("whole"))
	assert.Equal(t, "42", f.Lookup("empty", "whole"))
	assert.Empty(t, Text("x").Lookup("rate"))
}

func TestClientGetEmployeesBareListWithLeadingWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\n  [{\"employee_code\":\"C-3\",\"name\":\"Cam\"}]\n"))
	}))
	defer srv.Close()

	client := NewClient(config.Config{Biometric: config.Biometric{BaseURL: srv.URL, Timeout: time.Second, PageSize: 10}})

	list, err := client.GetEmployees(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "C-3", list[0].Code.Text)
}
