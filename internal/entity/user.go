package entity

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field names as they appear in stored documents.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
)

// RequiredFields lists the fields a Draft must carry, in form order.
var RequiredFields = []string{FieldName, FieldEmail, FieldPhone}

// User is a persisted (or provisional) user record.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Draft is a user that has not been created yet.
type Draft struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}

// Normalize trims surrounding whitespace and applies NFC normalization.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Normalize returns a copy of d with every field normalized.
func (d Draft) Normalize() Draft {
	return Draft{
		Name:  Normalize(d.Name),
		Email: Normalize(d.Email),
		Phone: Normalize(d.Phone),
	}
}

// Missing returns the required fields that are empty after normalization.
// Returns nil when the draft is complete.
func (d Draft) Missing() []string {
	n := d.Normalize()
	var missing []string
	if n.Name == "" {
		missing = append(missing, FieldName)
	}
	if n.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if n.Phone == "" {
		missing = append(missing, FieldPhone)
	}
	return missing
}

// Fields returns the draft as a document body.
func (d Draft) Fields() map[string]any {
	return map[string]any{
		FieldName:  d.Name,
		FieldEmail: d.Email,
		FieldPhone: d.Phone,
	}
}

// WithID returns the draft as a User carrying id.
func (d Draft) WithID(id string) User {
	return User{ID: id, Name: d.Name, Email: d.Email, Phone: d.Phone}
}

// Draft returns the user's fields without its id.
func (u User) Draft() Draft {
	return Draft{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// Persisted reports whether the user has a store-assigned id.
func (u User) Persisted() bool {
	return u.ID != ""
}

// Replace builds a patch that overwrites every field with the draft's values.
// This is what an edit form submits.
func Replace(d Draft) Patch {
	return Patch{Name: String(d.Name), Email: String(d.Email), Phone: String(d.Phone)}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

// Normalize returns a copy of p with every present field normalized.
func (p Patch) Normalize() Patch {
	var out Patch
	if p.Name != nil {
		out.Name = String(Normalize(*p.Name))
	}
	if p.Email != nil {
		out.Email = String(Normalize(*p.Email))
	}
	if p.Phone != nil {
		out.Phone = String(Normalize(*p.Phone))
	}
	return out
}

// Missing returns the present fields that would blank a required field.
func (p Patch) Missing() []string {
	n := p.Normalize()
	var missing []string
	if n.Name != nil && *n.Name == "" {
		missing = append(missing, FieldName)
	}
	if n.Email != nil && *n.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if n.Phone != nil && *n.Phone == "" {
		missing = append(missing, FieldPhone)
	}
	return missing
}

// Apply merges the patch into u. Last write wins per field.
func (p Patch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	return u
}

// Fields returns only the present fields as a document fragment.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if p.Name != nil {
		fields[FieldName] = *p.Name
	}
	if p.Email != nil {
		fields[FieldEmail] = *p.Email
	}
	if p.Phone != nil {
		fields[FieldPhone] = *p.Phone
	}
	return fields
}

// FromFields builds a User from a stored document body. Non-string and
// unknown fields are ignored.
func FromFields(id string, fields map[string]any) User {
	u := User{ID: id}
	if s, ok := fields[FieldName].(string); ok {
		u.Name = s
	}
	if s, ok := fields[FieldEmail].(string); ok {
		u.Email = s
	}
	if s, ok := fields[FieldPhone].(string); ok {
		u.Phone = s
	}
	return u
}

// IndexOf returns the position of the user with id in users, or -1.
func IndexOf(users []User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy of users. A nil input yields an empty
// slice so callers never have to distinguish the two.
func Clone(users []User) []User {
	out := make([]User, len(users))
	copy(out, users)
	return out
}
