package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rouna/storefront/internal/domain/shared"
)

// Address is a shipping or billing snapshot frozen on the order
type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Validate checks the mandatory fields
func (a Address) Validate() error {
	fields := []struct{ name, value string }{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"street", a.Street},
		{"city", a.City},
		{"postal_code", a.PostalCode},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return shared.NewDomainError(shared.CodeInvalidInput,
			"Address is incomplete: missing "+strings.Join(missing, ", "))
	}
	return nil
}

// IsEmpty reports whether no field is set
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// FullName joins first and last name
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Value implements driver.Valuer for jsonb columns
func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb columns
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("address: unsupported scan type")
	}
	if len(raw) == 0 {
		*a = Address{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
