package dbx

// PreparedStatement represents a named query prepared on every new physical connection of a pool.
//
// Fields:
//   - Name: A unique name identifying the prepared statement. Executing the name as SQL text runs the statement.
//   - Query: The SQL query string associated with the prepared statement, with $n placeholders.
type PreparedStatement struct {
	Name  string
	Query string
}

// NewPreparedStatement creates a new prepared statement.
func NewPreparedStatement(name, query string) PreparedStatement {
	return PreparedStatement{Name: name, Query: query}
}

// GetName returns the name of the prepared statement.
func (p PreparedStatement) GetName() string {
	return p.Name
}

// GetQuery returns the query of the prepared statement.
func (p PreparedStatement) GetQuery() string {
	return p.Query
}
