package domain

// Author is a catalog author. Book counts are derived on read and never stored.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name" yaml:"name" validate:"required,min=4"`
	Born *int   `json:"born,omitempty" yaml:"born,omitempty"`
}
