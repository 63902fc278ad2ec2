package types

import (
	"time"

	"github.com/google/uuid"
)

// Record is one deduplicated contact row. Canonical fields are flat columns
// so the search translator can compare them without dialect tricks; the
// fingerprint is the logical dedup key and carries a unique index as the
// backstop for concurrent ingestion.
type Record struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Fingerprint string    `gorm:"column:fingerprint;size:32;not null;uniqueIndex" json:"fingerprint"`

	Title        string `gorm:"column:title;size:10" json:"title"`
	FirstName    string `gorm:"column:first_name;size:50" json:"first_name"`
	LastName     string `gorm:"column:last_name;size:50" json:"last_name"`
	Phone        string `gorm:"column:phone;size:20;not null;index" json:"phone"`
	Email        string `gorm:"column:email" json:"email"`
	Address      string `gorm:"column:address" json:"address"`
	City         string `gorm:"column:city" json:"city"`
	Postcode     string `gorm:"column:postcode;size:10" json:"postcode"`
	DOB          string `gorm:"column:dob;size:10" json:"dob"`
	SupplierName string `gorm:"column:supplier_name;not null" json:"supplier_name"`
	BSC          string `gorm:"column:bsc;size:10" json:"bsc"`
	Delivery     string `gorm:"column:delivery;size:10" json:"delivery"`

	FirstSeenAt   time.Time `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	LastUpdatedAt time.Time `gorm:"column:last_updated_at;not null" json:"last_updated_at"`
}

func (Record) TableName() string { return "record" }

// recordColumns maps canonical field names to getters/setters so repos and
// the dedup engine can move between map-shaped rows and the struct without
// reflection.
var recordColumns = map[string]struct {
	get func(*Record) string
	set func(*Record, string)
}{
	"title":         {func(r *Record) string { return r.Title }, func(r *Record, v string) { r.Title = v }},
	"first_name":    {func(r *Record) string { return r.FirstName }, func(r *Record, v string) { r.FirstName = v }},
	"last_name":     {func(r *Record) string { return r.LastName }, func(r *Record, v string) { r.LastName = v }},
	"phone":         {func(r *Record) string { return r.Phone }, func(r *Record, v string) { r.Phone = v }},
	"email":         {func(r *Record) string { return r.Email }, func(r *Record, v string) { r.Email = v }},
	"address":       {func(r *Record) string { return r.Address }, func(r *Record, v string) { r.Address = v }},
	"city":          {func(r *Record) string { return r.City }, func(r *Record, v string) { r.City = v }},
	"postcode":      {func(r *Record) string { return r.Postcode }, func(r *Record, v string) { r.Postcode = v }},
	"dob":           {func(r *Record) string { return r.DOB }, func(r *Record, v string) { r.DOB = v }},
	"supplier_name": {func(r *Record) string { return r.SupplierName }, func(r *Record, v string) { r.SupplierName = v }},
	"bsc":           {func(r *Record) string { return r.BSC }, func(r *Record, v string) { r.BSC = v }},
	"delivery":      {func(r *Record) string { return r.Delivery }, func(r *Record, v string) { r.Delivery = v }},
}

// Field returns the value of a canonical field by name, "" for unknown names.
func (r *Record) Field(name string) string {
	col, ok := recordColumns[name]
	if !ok {
		return ""
	}
	return col.get(r)
}

// SetField assigns a canonical field by name; unknown names are ignored.
func (r *Record) SetField(name, value string) {
	if col, ok := recordColumns[name]; ok {
		col.set(r, value)
	}
}

// HasColumn reports whether name is a canonical Record column.
func HasColumn(name string) bool {
	_, ok := recordColumns[name]
	return ok
}

// NewRecord builds a Record from mapped canonical fields.
func NewRecord(fingerprint string, fields map[string]string, now time.Time) *Record {
	r := &Record{
		ID:            uuid.New(),
		Fingerprint:   fingerprint,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	for name, val := range fields {
		r.SetField(name, val)
	}
	return r
}
