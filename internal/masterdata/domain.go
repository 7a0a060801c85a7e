// Package masterdata manages the reference entities the procurement pipeline
// depends on: vendors supplying material and construction sites receiving it.
package masterdata

import (
	"errors"
	"time"
)

// ErrNotFound indicates a missing master data record.
var ErrNotFound = errors.New("masterdata: not found")

// ErrValidation indicates invalid input on a master data operation.
var ErrValidation = errors.New("masterdata: validation failed")

// Vendor is a material supplier. Disabled vendors stay referenceable from
// historical documents but cannot be quoted on new comparisons.
type Vendor struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	GSTIN        string    `json:"gstin,omitempty"`
	Address      string    `json:"address,omitempty"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Site is a construction site that raises requests and receives deliveries.
type Site struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
