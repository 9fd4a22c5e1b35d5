package models

// Subject is a teachable subject offered on the platform.
type Subject struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Location is a supported session venue (e.g. Online, At home).
type Location struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
