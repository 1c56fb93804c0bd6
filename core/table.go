package core

import "time"

// Identity identifies the author of local ledger transactions.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Table describes a ledger table and the fields it is indexed on.
type Table struct {
	ID        string    `json:"tableId"`
	Name      string    `json:"name"`
	Indexes   []string  `json:"indexes"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasIndex reports whether the table carries an index on field.
func (t Table) HasIndex(field string) bool {
	for _, idx := range t.Indexes {
		if idx == field {
			return true
		}
	}
	return false
}
