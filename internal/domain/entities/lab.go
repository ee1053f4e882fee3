package entities

import "strings"

// Lab represents a diagnostic laboratory offered by the booking backend
type Lab struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Address        Address                 `json:"address"`
	Contact        Contact                 `json:"contact"`
	OperatingHours map[string]OpeningHours `json:"operating_hours,omitempty"`
	Location       *Coordinate             `json:"location,omitempty"`
	Tests          []TestRef               `json:"tests,omitempty"`
	Packages       []PackageRef            `json:"packages,omitempty"`
	// DistanceKm is derived from the reference coordinate and never sent to the backend.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	IsActive   bool     `json:"is_active"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// SearchText flattens the address for substring matching.
func (a Address) SearchText() string {
	return strings.Join([]string{a.Street, a.City, a.State, a.ZipCode}, " ")
}

// String renders the non-empty address parts separated by commas.
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Contact holds the lab's reachable channels
type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// OpeningHours holds the open and close clock times for one weekday
type OpeningHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// TestRef is a read-only projection of a catalog test
type TestRef struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Category string   `json:"category,omitempty"`
}

// PackageRef is a read-only projection of a catalog package
type PackageRef struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	TestCount int      `json:"test_count,omitempty"`
}

// FindTest returns the catalog test with the given id.
func (l *Lab) FindTest(id string) (TestRef, bool) {
	for _, t := range l.Tests {
		if t.ID == id {
			return t, true
		}
	}
	return TestRef{}, false
}

// FindPackage returns the catalog package with the given id.
func (l *Lab) FindPackage(id string) (PackageRef, bool) {
	for _, p := range l.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return PackageRef{}, false
}
