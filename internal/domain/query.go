package domain

// Table is an ordered, fully formatted query result set.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// QueryPayload is the tool-output encoding of one Genie answer. Exactly one
// of Table and Message is set.
type QueryPayload struct {
	ConversationID string `json:"conversation_id"`
	Table          *Table `json:"table,omitempty"`
	Message        string `json:"message,omitempty"`
}

// QueryError is the tool-output encoding of a failed Genie exchange. A tool
// must always return some output, so failures are carried as data.
type QueryError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
